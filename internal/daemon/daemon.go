package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"buildwatch/internal/config"
	"buildwatch/internal/feed"
	"buildwatch/internal/logging"
	"buildwatch/internal/monitor"
	"buildwatch/internal/notifications"
	"buildwatch/internal/publish"
	"buildwatch/internal/status"
	"buildwatch/internal/store"
)

// Daemon coordinates background polling and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *store.Store
	monitor    *monitor.Monitor
	alerts     notifications.AlertService
	dispatcher *notifications.Dispatcher
	publisher  *publish.Publisher
	api        *apiServer
	sessionID  string

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedAt atomic.Int64
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	SessionID    string
	StartedAt    time.Time
	DatabasePath string
	LockFilePath string
	APIAddress   string
	Pipelines    []status.Pipeline
	Alerts       notifications.Settings
	Publishing   bool
}

// Options carries optional collaborators. Zero values select the production
// implementations.
type Options struct {
	Fetcher   feed.Fetcher
	Alerts    notifications.AlertService
	Publisher *publish.Publisher
	Now       func() time.Time
}

// New constructs a daemon and restores pipelines from the store, seeding it
// from the configuration file on first run.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.Fetcher == nil {
		opts.Fetcher = feed.NewClient()
	}
	if opts.Alerts == nil {
		opts.Alerts = notifications.NewService(cfg)
	}

	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     st,
		alerts:    opts.Alerts,
		publisher: opts.Publisher,
		sessionID: uuid.NewString(),
		lockPath:  cfg.LockPath(),
		lock:      flock.New(cfg.LockPath()),
	}
	d.monitor = monitor.New(opts.Fetcher, monitor.Options{
		Interval:    cfg.PollInterval(),
		MinInterval: cfg.MinPollInterval(),
		Jitter:      cfg.PollJitter(),
		Timeout:     cfg.FetchTimeout(),
		OnUpdate:    d.persistStatus,
		Now:         opts.Now,
	}, logger)
	d.dispatcher = notifications.NewDispatcher(d.alerts, d.preferences, cfg.NotifyTimeout(), logger)
	d.alerts.OnUserResponse(d.handleUserResponse)

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api

	if err := d.restorePipelines(context.Background()); err != nil {
		return nil, err
	}
	return d, nil
}

// Start acquires the daemon lock and launches polling, alert dispatch,
// publishing and the API server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another buildwatch daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	changes, unsubscribe := d.monitor.Subscribe()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer unsubscribe()
		if err := d.dispatcher.Run(runCtx, changes); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Warn("alert dispatcher stopped", logging.Error(err))
		}
	}()

	if d.publisher != nil {
		published, stopPublishing := d.monitor.Subscribe()
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			defer stopPublishing()
			_ = d.publisher.Run(runCtx, published)
		}()
	}

	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.wg.Wait()
		_ = d.lock.Unlock()
		return err
	}

	if err := d.monitor.Start(runCtx); err != nil {
		cancel()
		d.api.stop()
		d.wg.Wait()
		_ = d.lock.Unlock()
		return fmt.Errorf("start monitor: %w", err)
	}

	d.cancel = cancel
	started := time.Now()
	d.startedAt.Store(started.UnixNano())
	d.running.Store(true)
	d.logger.Info("buildwatch daemon started",
		logging.Time("started_at", started),
		logging.String("lock", d.lockPath),
		logging.String("session_id", d.sessionID),
		logging.Int("pipelines", len(d.monitor.Snapshot())),
	)
	return nil
}

// Stop stops background work and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.monitor.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("buildwatch daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.publisher != nil {
		errs = append(errs, d.publisher.Close())
	}
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	return errors.Join(errs...)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	settings, err := d.alerts.CurrentSettings(ctx)
	if err != nil {
		d.logger.Debug("alert settings unavailable", logging.Error(err))
	}
	var startedAt time.Time
	if ns := d.startedAt.Load(); ns > 0 {
		startedAt = time.Unix(0, ns)
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		SessionID:    d.sessionID,
		StartedAt:    startedAt,
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		APIAddress:   d.api.address(),
		Pipelines:    d.monitor.Snapshot(),
		Alerts:       settings,
		Publishing:   d.publisher != nil,
	}
}

// Pipelines returns the ordered snapshot of watched pipelines.
func (d *Daemon) Pipelines() []status.Pipeline {
	return d.monitor.Snapshot()
}

// Subscribe streams detected changes until the returned cancel is called.
func (d *Daemon) Subscribe() (<-chan status.StatusChange, func()) {
	return d.monitor.Subscribe()
}

func (d *Daemon) persistStatus(p status.Pipeline) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.store.SaveStatus(ctx, p); err != nil && !errors.Is(err, store.ErrNotFound) {
		logging.WarnWithContext(d.logger, "failed to persist pipeline status", "status_persist_failed",
			logging.String(logging.FieldPipelineID, p.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "status shown after restart may be stale"),
		)
	}
}
