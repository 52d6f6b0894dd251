package monitor

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang/groupcache/singleflight"

	"buildwatch/internal/feed"
	"buildwatch/internal/logging"
	"buildwatch/internal/status"
)

var (
	// ErrUnknownPipeline is returned for ids the monitor does not track.
	ErrUnknownPipeline = errors.New("unknown pipeline")
	// ErrDuplicatePipeline is returned when adding an id that is already tracked.
	ErrDuplicatePipeline = errors.New("pipeline already tracked")
)

const (
	defaultInterval    = time.Minute
	defaultMinInterval = 15 * time.Second
	defaultTimeout     = 10 * time.Second
)

// Options configures scheduling and callbacks.
type Options struct {
	Interval    time.Duration
	MinInterval time.Duration
	// Jitter bounds the per-server offset applied to each pipeline's schedule.
	Jitter  time.Duration
	Timeout time.Duration
	// OnUpdate receives a copy of the pipeline after every committed fetch
	// outcome, successful or not.
	OnUpdate func(status.Pipeline)
	Now      func() time.Time
}

type entry struct {
	pipeline status.Pipeline
	trigger  chan struct{}
	cancel   context.CancelFunc
	seq      uint64
	// buildStarted is when this monitor first saw the current build running.
	buildStarted time.Time
}

// Monitor polls pipelines and publishes detected status changes.
type Monitor struct {
	fetcher feed.Fetcher
	opts    Options
	logger  *slog.Logger

	mu        sync.RWMutex
	order     []string
	pipelines map[string]*entry
	runCtx    context.Context
	cancel    context.CancelFunc
	running   bool
	nextSeq   uint64

	wg      sync.WaitGroup
	flights singleflight.Group
	changes *broadcaster
}

// New constructs a Monitor. Zero option values fall back to defaults and the
// interval is never allowed below MinInterval.
func New(fetcher feed.Fetcher, opts Options, logger *slog.Logger) *Monitor {
	if opts.MinInterval <= 0 {
		opts.MinInterval = defaultMinInterval
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	opts.Interval = max(opts.Interval, opts.MinInterval)
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Jitter < 0 {
		opts.Jitter = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Monitor{
		fetcher:   fetcher,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "monitor"),
		pipelines: make(map[string]*entry),
		changes:   newBroadcaster(),
	}
}

// Add starts tracking a pipeline. The pipeline's status is kept as the last
// known snapshot, so a pipeline restored from storage classifies its next
// fetch against what was seen before the restart.
func (m *Monitor) Add(p status.Pipeline) error {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return errors.New("pipeline id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.pipelines[p.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePipeline, p.ID)
	}
	m.nextSeq++
	e := &entry{pipeline: p.Clone(), trigger: make(chan struct{}, 1), seq: m.nextSeq}
	if p.Status.IsActive() {
		e.buildStarted = m.opts.Now()
	}
	m.pipelines[p.ID] = e
	m.order = append(m.order, p.ID)
	if m.running {
		m.startWorkerLocked(e)
	}
	return nil
}

// Load adds every pipeline in order, stopping at the first error.
func (m *Monitor) Load(pipelines []status.Pipeline) error {
	for _, p := range pipelines {
		if err := m.Add(p); err != nil {
			return err
		}
	}
	return nil
}

// Remove stops tracking a pipeline. A fetch already in flight for it is
// discarded when it completes.
func (m *Monitor) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.pipelines[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPipeline, id)
	}
	if e.cancel != nil {
		e.cancel()
	}
	delete(m.pipelines, id)
	for idx, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:idx], m.order[idx+1:]...)
			break
		}
	}
	return nil
}

// Snapshot returns copies of all pipelines in insertion order.
func (m *Monitor) Snapshot() []status.Pipeline {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]status.Pipeline, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.pipelines[id].pipeline.Clone())
	}
	return out
}

// Pipeline returns a copy of one pipeline.
func (m *Monitor) Pipeline(id string) (status.Pipeline, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.pipelines[id]
	if !ok {
		return status.Pipeline{}, false
	}
	return e.pipeline.Clone(), true
}

// Subscribe returns a stream of detected changes and a function that ends the
// subscription. Every change is delivered in detection order; slow
// subscribers buffer without blocking the monitor.
func (m *Monitor) Subscribe() (<-chan status.StatusChange, func()) {
	return m.changes.subscribe()
}

// Start launches one worker per tracked pipeline.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("monitor already running")
	}
	m.runCtx, m.cancel = context.WithCancel(ctx)
	m.running = true
	for _, id := range m.order {
		m.startWorkerLocked(m.pipelines[id])
	}
	m.logger.Info("monitor started",
		logging.Int("pipelines", len(m.order)),
		logging.Duration("interval", m.opts.Interval),
	)
	return nil
}

// Stop cancels every worker and in-flight fetch, then waits for them to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.runCtx = nil
	for _, e := range m.pipelines {
		e.cancel = nil
	}
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether workers are active.
func (m *Monitor) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Trigger asks a pipeline's worker to refresh now. Triggers coalesce: while
// one is pending, further triggers for the same pipeline are absorbed.
func (m *Monitor) Trigger(id string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.pipelines[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPipeline, id)
	}
	poke(e.trigger)
	return nil
}

// TriggerAll asks every worker to refresh now.
func (m *Monitor) TriggerAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.pipelines {
		poke(e.trigger)
	}
}

func poke(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (m *Monitor) startWorkerLocked(e *entry) {
	ctx, cancel := context.WithCancel(m.runCtx)
	e.cancel = cancel
	m.wg.Add(1)
	go m.runWorker(ctx, e.pipeline.ID, e.pipeline.Server, e.trigger)
}

func (m *Monitor) runWorker(ctx context.Context, id string, server status.Server, trigger <-chan struct{}) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String(logging.FieldPipelineID, id))
	ctx = logging.WithPipelineID(ctx, id)

	timer := time.NewTimer(scheduleOffset(server, id, m.opts.Jitter))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-trigger:
			logger.Debug("manual refresh requested")
		}

		err := m.Refresh(ctx, id)
		if ctx.Err() != nil || errors.Is(err, ErrUnknownPipeline) {
			return
		}
		timer.Reset(m.opts.Interval)
	}
}

// scheduleOffset spreads pipelines across [0, jitter) using a hash of the
// server host and pipeline id. Pipelines on one host land on distinct offsets
// while a given pipeline keeps the same phase across restarts.
func scheduleOffset(server status.Server, id string, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(server.Host()))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(id))
	return time.Duration(h.Sum64() % uint64(jitter))
}
