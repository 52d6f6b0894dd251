package daemon

import (
	"context"
	"sync"
	"testing"
	"time"

	"buildwatch/internal/config"
	"buildwatch/internal/notifications"
	"buildwatch/internal/status"
	"buildwatch/internal/testsupport"
)

type stateFetcher struct {
	mu     sync.Mutex
	states map[string]status.Status
	errs   map[string]error
	calls  map[string]int
}

func newStateFetcher() *stateFetcher {
	return &stateFetcher{
		states: map[string]status.Status{},
		errs:   map[string]error{},
		calls:  map[string]int{},
	}
}

func (f *stateFetcher) set(project string, st status.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[project] = st
	delete(f.errs, project)
}

func (f *stateFetcher) fail(project string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[project] = err
}

func (f *stateFetcher) callCount(project string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[project]
}

func (f *stateFetcher) FetchStatus(_ context.Context, server status.Server) (status.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[server.Project]++
	if err := f.errs[server.Project]; err != nil {
		return status.Status{}, err
	}
	st, ok := f.states[server.Project]
	if !ok {
		return status.Status{Activity: status.ActivitySleeping}, nil
	}
	return st.Clone(), nil
}

type recordingAlerts struct {
	mu        sync.Mutex
	settings  notifications.Settings
	delivered []notifications.Content
}

func (a *recordingAlerts) RequestAuthorization(context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings.Authorized, nil
}

func (a *recordingAlerts) CurrentSettings(context.Context) (notifications.Settings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings, nil
}

func (a *recordingAlerts) Deliver(_ context.Context, content notifications.Content) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.delivered = append(a.delivered, content)
	return nil
}

func (a *recordingAlerts) OnUserResponse(func(notifications.UserResponse)) {}

func (a *recordingAlerts) bodies() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.delivered))
	for _, c := range a.delivered {
		out = append(out, c.Body)
	}
	return out
}

func testConfig(t *testing.T, opts ...testsupport.ConfigOption) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Polling.JitterSeconds = 0
	return cfg
}

func newTestDaemon(t *testing.T, cfg *config.Config, fetcher *stateFetcher, alerts notifications.AlertService) *Daemon {
	t.Helper()
	st := testsupport.MustOpenStore(t, cfg)
	d, err := New(cfg, st, nil, Options{Fetcher: fetcher, Alerts: alerts})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
	})
	return d
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func sleepingWith(label string, result status.Result) status.Status {
	return status.Status{Activity: status.ActivitySleeping, LastBuild: &status.Build{Label: label, Result: result}}
}

func buildingAfter(label string, result status.Result) status.Status {
	st := sleepingWith(label, result)
	st.Activity = status.ActivityBuilding
	return st
}
