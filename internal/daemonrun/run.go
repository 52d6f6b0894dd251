// Package daemonrun wires the long-running buildwatch process: logging, the
// status store, the daemon, and its IPC socket.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"buildwatch/internal/config"
	"buildwatch/internal/daemon"
	"buildwatch/internal/ipc"
	"buildwatch/internal/logging"
	"buildwatch/internal/publish"
	"buildwatch/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the buildwatch daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("buildwatch-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update buildwatch.log link: %v\n", err)
	}
	logConfigSnapshot(logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open status store", logging.Error(err))
		return err
	}

	publisher, err := publish.New(cfg, logger)
	if err != nil {
		logging.WarnWithContext(logger, "redis publisher disabled", "publisher_init_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check redis.url"),
			logging.String(logging.FieldImpact, "changes are not mirrored to redis"),
		)
		publisher = nil
	}

	d, err := daemon.New(cfg, st, logger, daemon.Options{Publisher: publisher})
	if err != nil {
		_ = st.Close()
		if publisher != nil {
			_ = publisher.Close()
		}
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("buildwatch daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "buildwatch.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// ReadPID returns the pid recorded by a running daemon, or 0 when none is recorded.
func ReadPID(cfg *config.Config) int {
	if cfg == nil {
		return 0
	}
	data, err := os.ReadFile(cfg.PIDPath())
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	projects := make([]string, 0, len(cfg.Pipelines))
	for _, p := range cfg.Pipelines {
		projects = append(projects, p.Project)
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.Int("configured_pipelines", len(cfg.Pipelines)),
		logging.Any("configured_projects", projects),
		logging.Duration("poll_interval", cfg.PollInterval()),
		logging.Duration("min_poll_interval", cfg.MinPollInterval()),
		logging.Bool("alerts_configured", cfg.Notifications.NtfyTopic != ""),
		logging.Bool("redis_configured", cfg.Redis.URL != ""),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_auth", cfg.Paths.APIToken != ""),
	)
}
