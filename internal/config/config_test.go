package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"buildwatch/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("BUILDWATCH_API_TOKEN", "")
	t.Setenv("BUILDWATCH_NTFY_TOPIC", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "buildwatch")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.DatabasePath() != filepath.Join(wantState, "buildwatch.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Paths.APIBind != "127.0.0.1:7488" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if !cfg.Notifications.Enabled || !cfg.Notifications.Start || !cfg.Notifications.Completion {
		t.Fatalf("expected notifications enabled by default: %+v", cfg.Notifications)
	}
	if cfg.PollInterval() != time.Minute {
		t.Fatalf("unexpected poll interval: %v", cfg.PollInterval())
	}
	if cfg.FetchTimeout() != 10*time.Second {
		t.Fatalf("unexpected fetch timeout: %v", cfg.FetchTimeout())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist", dir)
		}
	}
}

func TestLoadCustomConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("GITHUB_TOKEN", "env-token")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
state_dir = "~/state"
api_token = "secret"

[polling]
interval_seconds = 5
min_interval_seconds = 30
request_timeout = 20

[notifications]
ntfy_topic = "https://ntfy.sh/builds"
start = false

[logging]
format = "JSON"

[[pipelines]]
name = "app"
url = "https://ci.example.com/cctray.xml"
project = "app"

[[pipelines]]
kind = "github"
project = "octo/repo/ci.yml"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, "state") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.PollInterval() != 30*time.Second {
		t.Fatalf("interval should be floored at the minimum, got %v", cfg.PollInterval())
	}
	if cfg.Notifications.Start {
		t.Fatal("expected start alerts disabled")
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}
	if len(cfg.Pipelines) != 2 {
		t.Fatalf("expected 2 pipelines, got %d", len(cfg.Pipelines))
	}
	if cfg.Pipelines[0].Kind != "cctray" {
		t.Fatalf("expected cctray default kind, got %q", cfg.Pipelines[0].Kind)
	}
	gh := cfg.Pipelines[1]
	if gh.URL != "https://api.github.com" || gh.Token != "env-token" {
		t.Fatalf("github pipeline did not inherit defaults: %+v", gh)
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "zero interval",
			mutate:  func(c *config.Config) { c.Polling.IntervalSeconds = 0 },
			wantErr: "polling.interval_seconds",
		},
		{
			name:    "negative jitter",
			mutate:  func(c *config.Config) { c.Polling.JitterSeconds = -1 },
			wantErr: "polling.jitter_seconds",
		},
		{
			name:    "timeout above floor",
			mutate:  func(c *config.Config) { c.Polling.RequestTimeout = 60 },
			wantErr: "polling.request_timeout",
		},
		{
			name:    "bad ntfy topic",
			mutate:  func(c *config.Config) { c.Notifications.NtfyTopic = "builds" },
			wantErr: "notifications.ntfy_topic",
		},
		{
			name:    "bad redis url",
			mutate:  func(c *config.Config) { c.Redis.URL = "localhost:6379" },
			wantErr: "redis.url",
		},
		{
			name: "unknown pipeline kind",
			mutate: func(c *config.Config) {
				c.Pipelines = []config.Pipeline{{Kind: "jenkins", URL: "https://ci", Project: "x"}}
			},
			wantErr: "pipelines[0].kind",
		},
		{
			name: "duplicate pipeline",
			mutate: func(c *config.Config) {
				p := config.Pipeline{Kind: "cctray", URL: "https://ci.example.com/cc.xml", Project: "x"}
				c.Pipelines = []config.Pipeline{p, p}
			},
			wantErr: "pipelines[1]",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
}
