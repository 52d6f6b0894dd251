package monitor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"buildwatch/internal/feed"
	"buildwatch/internal/logging"
	"buildwatch/internal/status"
)

// Refresh fetches a pipeline's status now and commits the outcome. Concurrent
// calls for the same pipeline share one fetch and one commit. The fetch is
// bound to the monitor's lifetime, not ctx: a caller whose ctx ends gets
// ctx.Err() and the shared fetch still completes. A failed fetch is recorded
// on the pipeline and returned; the previous status is kept.
func (m *Monitor) Refresh(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	e, ok := m.pipelines[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPipeline, id)
	}

	done := make(chan error, 1)
	go func() {
		_, err := m.flights.Do(flightKey(id, e.seq), func() (any, error) {
			return nil, m.refresh(ctx, e)
		})
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// flightKey separates a re-added pipeline from a fetch still in flight for
// its removed predecessor.
func flightKey(id string, seq uint64) string {
	return id + "#" + strconv.FormatUint(seq, 10)
}

// RefreshAll refreshes every pipeline concurrently and waits for all of them.
// Errors are recorded on the pipelines; the joined error is returned.
func (m *Monitor) RefreshAll(ctx context.Context) error {
	ids := m.ids()
	errs := make([]error, len(ids))
	done := make(chan struct{}, len(ids))
	for idx, id := range ids {
		go func() {
			errs[idx] = m.Refresh(ctx, id)
			done <- struct{}{}
		}()
	}
	for range ids {
		<-done
	}
	return errors.Join(errs...)
}

func (m *Monitor) ids() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

func (m *Monitor) refresh(ctx context.Context, e *entry) error {
	id := e.pipeline.ID
	m.mu.RLock()
	server := e.pipeline.Server
	base := m.runCtx
	m.mu.RUnlock()
	if base == nil {
		base = context.WithoutCancel(ctx)
	}

	fetchCtx, cancel := context.WithTimeout(base, m.opts.Timeout)
	next, fetchErr := m.fetcher.FetchStatus(fetchCtx, server)
	cancel()

	now := m.opts.Now()
	logger := m.logger.With(logging.String(logging.FieldPipelineID, id))

	m.mu.Lock()
	if err := base.Err(); err != nil {
		m.mu.Unlock()
		logger.Debug("discarding fetch after monitor stop")
		return err
	}
	if current, ok := m.pipelines[id]; !ok || current != e {
		m.mu.Unlock()
		logger.Debug("discarding fetch for removed pipeline")
		return nil
	}

	if fetchErr != nil {
		e.pipeline.LastError = fetchErr.Error()
		e.pipeline.LastErrorAt = now
		snapshot := e.pipeline.Clone()
		m.mu.Unlock()

		logging.WarnWithContext(logger, "status fetch failed", "fetch_failed",
			logging.Error(fetchErr),
			logging.String("error_kind", string(feed.KindOf(fetchErr))),
			logging.String(logging.FieldErrorHint, "check the server url, project name, and credentials"),
			logging.String(logging.FieldImpact, "last known status is shown until the next successful fetch"),
		)
		m.notifyUpdate(snapshot)
		return fetchErr
	}

	old := e.pipeline.Status
	next = m.completeDuration(e, old, next, now)
	e.pipeline.Status = next
	e.pipeline.LastError = ""
	e.pipeline.LastErrorAt = time.Time{}
	e.pipeline.LastFetched = now

	change, changed := status.Classify(old, next, e.pipeline)
	if changed {
		m.changes.publish(change)
	}
	snapshot := e.pipeline.Clone()
	m.mu.Unlock()

	if changed {
		logger.Info("status change detected",
			logging.String("kind", string(change.Kind)),
			logging.String(logging.FieldChangeID, change.ID),
			logging.String("activity", string(next.Activity)),
		)
	} else {
		logger.Debug("status refreshed", logging.String("activity", string(next.Activity)))
	}
	m.notifyUpdate(snapshot)
	return nil
}

// completeDuration tracks when a build was first seen running and, when that
// build finishes without a server-reported duration, fills in the observed
// elapsed time. Must be called with m.mu held.
func (m *Monitor) completeDuration(e *entry, old, next status.Status, now time.Time) status.Status {
	switch {
	case next.IsActive():
		if !old.IsActive() || e.buildStarted.IsZero() {
			e.buildStarted = now
		}
		return next
	case old.IsActive():
		started := e.buildStarted
		e.buildStarted = time.Time{}
		build := next.LastBuild
		if build == nil || build.Duration != nil || started.IsZero() || !now.After(started) {
			return next
		}
		if old.LastBuild != nil && old.LastBuild.Label == build.Label {
			return next
		}
		finished := build.WithDuration(now.Sub(started))
		next.LastBuild = &finished
		return next
	default:
		e.buildStarted = time.Time{}
		return next
	}
}

func (m *Monitor) notifyUpdate(p status.Pipeline) {
	if m.opts.OnUpdate != nil {
		m.opts.OnUpdate(p)
	}
}
