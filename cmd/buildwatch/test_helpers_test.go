package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"buildwatch/internal/config"
	"buildwatch/internal/daemon"
	"buildwatch/internal/ipc"
	"buildwatch/internal/logging"
	"buildwatch/internal/status"
	"buildwatch/internal/testsupport"
)

type projectFetcher struct {
	mu     sync.Mutex
	states map[string]status.Status
	errs   map[string]error
}

func (f *projectFetcher) set(project string, st status.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[project] = st
	delete(f.errs, project)
}

func (f *projectFetcher) fail(project string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[project] = err
}

func (f *projectFetcher) FetchStatus(_ context.Context, server status.Server) (status.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[server.Project]; err != nil {
		return status.Status{}, err
	}
	if st, ok := f.states[server.Project]; ok {
		return st.Clone(), nil
	}
	return status.Status{Activity: status.ActivitySleeping}, nil
}

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	fetcher    *projectFetcher
	socketPath string
	configPath string
}

const testAPISecret = "cli-test-secret"

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("BUILDWATCH_NTFY_TOPIC", "")

	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken(testAPISecret))
	cfg.Paths.APIBind = ""
	configPath := filepath.Join(homeDir, ".config", "buildwatch", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	fetcher := &projectFetcher{states: map[string]status.Status{}, errs: map[string]error{}}
	d, err := daemon.New(cfg, store, logger, daemon.Options{Fetcher: fetcher})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		cancel()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Stop()
	})

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		fetcher:    fetcher,
		socketPath: cfg.SocketPath(),
		configPath: configPath,
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nstate_dir = %q\nlog_dir = %q\napi_bind = %q\napi_token = %q\n\n[display]\nstatus_color = false\n",
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
		cfg.Paths.APIToken,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
