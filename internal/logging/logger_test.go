package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"buildwatch/internal/config"
	"buildwatch/internal/logging"
)

func newFileLogger(t *testing.T, format, level string) (string, func() string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "test.log")
	logger, err := logging.New(logging.Options{Format: format, Level: level, OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	read := func() string {
		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		return string(content)
	}
	logging.NewComponentLogger(logger, "monitor").Info("status refreshed",
		logging.String(logging.FieldPipelineID, "cctray:ci/app"),
		logging.String("activity", "sleeping"),
		logging.Error(errors.New("boom happened")),
	)
	logger.Debug("debug detail")
	return logPath, read
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello")
	if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, "buildwatch.log")); err != nil {
		t.Fatalf("expected log file: %v", err)
	}
}

func TestConsoleFormatPutsComponentAndPipelineInHeader(t *testing.T) {
	_, read := newFileLogger(t, "console", "info")
	content := read()
	if !strings.Contains(content, "monitor [cctray:ci/app]: status refreshed") {
		t.Fatalf("missing header in %q", content)
	}
	if !strings.Contains(content, "activity=sleeping") {
		t.Fatalf("missing attribute in %q", content)
	}
	if !strings.Contains(content, `error="boom happened"`) {
		t.Fatalf("expected quoted error in %q", content)
	}
	if strings.Contains(content, "debug detail") {
		t.Fatal("debug line written at info level")
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information at info level, got %q", content)
	}
}

func TestConsoleDebugIncludesCaller(t *testing.T) {
	_, read := newFileLogger(t, "console", "debug")
	content := read()
	if !strings.Contains(content, "debug detail") {
		t.Fatalf("expected debug line in %q", content)
	}
	if !strings.Contains(content, ".go:") {
		t.Fatalf("expected caller information at debug level, got %q", content)
	}
}

func TestJSONFormat(t *testing.T) {
	_, read := newFileLogger(t, "json", "info")
	line := strings.TrimSpace(strings.Split(read(), "\n")[0])
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		t.Fatalf("invalid json %q: %v", line, err)
	}
	if record["level"] != "info" || record["component"] != "monitor" || record["pipeline_id"] != "cctray:ci/app" {
		t.Fatalf("unexpected record %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key in %v", record)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWithContextAddsPipelineField(t *testing.T) {
	ctx := logging.WithPipelineID(context.Background(), "p1")
	ctx = logging.WithRequestID(ctx, "req-9")
	fields := logging.ContextFields(ctx)
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %v", fields)
	}
	if fields[0].Key != logging.FieldPipelineID || fields[0].Value.String() != "p1" {
		t.Fatalf("unexpected pipeline field %v", fields[0])
	}
	if logging.WithContext(context.Background(), nil) == nil {
		t.Fatal("expected fallback logger")
	}
}

func TestWarnWithContextFillsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "fetch failed", "fetch_failed", logging.String(logging.FieldImpact, "status is stale"))
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(content, &record); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if record["event_type"] != "fetch_failed" || record["impact"] != "status is stale" || record["error_hint"] == nil {
		t.Fatalf("unexpected record %v", record)
	}
}

func TestErrorWithContextKeepsCallerHint(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "error.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.ErrorWithContext(logger, "api server stopped", "api_serve_failed",
		logging.String(logging.FieldErrorHint, "check api_bind"),
		logging.Any("projects", []string{"app", "web"}),
	)
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(content, &record); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if record["level"] != "error" || record["event_type"] != "api_serve_failed" || record["error_hint"] != "check api_bind" {
		t.Fatalf("unexpected record %v", record)
	}
	if _, ok := record["projects"]; !ok {
		t.Fatalf("expected projects key in %v", record)
	}
}
