package daemon

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"buildwatch/internal/notifications"
	"buildwatch/internal/status"
	"buildwatch/internal/store"
	"buildwatch/internal/testsupport"
)

func TestDaemonStartStop(t *testing.T) {
	cfg := testConfig(t)
	d := newTestDaemon(t, cfg, newStateFetcher(), &recordingAlerts{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	st := d.Status(ctx)
	if !st.Running || st.APIAddress == "" || st.StartedAt.IsZero() {
		t.Fatalf("unexpected status %+v", st)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
}

func TestNewSeedsPipelinesFromConfigOnce(t *testing.T) {
	cfg := testConfig(t,
		testsupport.WithPipeline("", "cctray", "https://ci.example.com/cc.xml", "web-app"),
		testsupport.WithPipeline("Docs", "cctray", "https://ci.example.com/cc.xml", "docs"),
	)
	st := testsupport.MustOpenStore(t, cfg)
	d, err := New(cfg, st, nil, Options{Fetcher: newStateFetcher(), Alerts: &recordingAlerts{}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	pipelines := d.Pipelines()
	if len(pipelines) != 2 || pipelines[0].Name != "Web App" || pipelines[1].Name != "Docs" {
		t.Fatalf("unexpected pipelines %+v", pipelines)
	}
	if err := d.RemovePipeline(context.Background(), pipelines[1].ID); err != nil {
		t.Fatalf("RemovePipeline failed: %v", err)
	}

	again, err := New(cfg, st, nil, Options{Fetcher: newStateFetcher(), Alerts: &recordingAlerts{}})
	if err != nil {
		t.Fatalf("second New failed: %v", err)
	}
	if got := again.Pipelines(); len(got) != 1 {
		t.Fatalf("store should not be reseeded, got %d pipelines", len(got))
	}
}

func TestAddAndRemovePipeline(t *testing.T) {
	cfg := testConfig(t)
	d := newTestDaemon(t, cfg, newStateFetcher(), &recordingAlerts{})
	ctx := context.Background()

	p, err := d.AddPipeline(ctx, PipelineSpec{Kind: "github", Project: "acme/api/ci.yml@main"})
	if err != nil {
		t.Fatalf("AddPipeline failed: %v", err)
	}
	if p.Name != "Api Ci" || p.Server.URL != cfg.GitHub.APIURL {
		t.Fatalf("unexpected pipeline %+v", p)
	}
	if _, err := d.AddPipeline(ctx, PipelineSpec{Kind: "github", Project: "acme/api/ci.yml@main"}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, err := d.AddPipeline(ctx, PipelineSpec{Kind: "jenkins", URL: "https://x", Project: "y"}); err == nil {
		t.Fatal("expected unsupported kind error")
	}
	if _, err := d.AddPipeline(ctx, PipelineSpec{Project: "y"}); err == nil {
		t.Fatal("expected missing url error")
	}

	stored, err := d.store.List(ctx)
	if err != nil || len(stored) != 1 {
		t.Fatalf("store list = %v, %v", stored, err)
	}

	if err := d.RemovePipeline(ctx, p.ID); err != nil {
		t.Fatalf("RemovePipeline failed: %v", err)
	}
	if len(d.Pipelines()) != 0 {
		t.Fatal("expected monitor to drop pipeline")
	}
	if err := d.RemovePipeline(ctx, p.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDefaultName(t *testing.T) {
	tests := []struct {
		server status.Server
		want   string
	}{
		{server: status.Server{Kind: status.ServerCCTray, Project: "web-app"}, want: "Web App"},
		{server: status.Server{Kind: status.ServerCCTray, Project: "API_gateway"}, want: "API Gateway"},
		{server: status.Server{Kind: status.ServerGitHub, Project: "acme/widgets/release.yaml"}, want: "Widgets Release"},
		{server: status.Server{Kind: status.ServerCCTray, Project: "---"}, want: "---"},
	}
	for _, tc := range tests {
		if got := DefaultName(tc.server); got != tc.want {
			t.Fatalf("DefaultName(%q) = %q, want %q", tc.server.Project, got, tc.want)
		}
	}
}

func TestRefreshDeliversAlertsAndPersistsStatus(t *testing.T) {
	cfg := testConfig(t)
	fetcher := newStateFetcher()
	alerts := &recordingAlerts{settings: notifications.Settings{Authorized: true, AlertsEnabled: true}}
	d := newTestDaemon(t, cfg, fetcher, alerts)
	ctx := context.Background()

	p, err := d.AddPipeline(ctx, PipelineSpec{Name: "Build", URL: "https://ci/cc.xml", Project: "app"})
	if err != nil {
		t.Fatalf("AddPipeline failed: %v", err)
	}
	fetcher.set("app", sleepingWith("1", status.ResultFailure))
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// The worker's first poll establishes the baseline.
	waitFor(t, 2*time.Second, func() bool {
		got, err := d.Pipeline(p.ID)
		return err == nil && !got.LastFetched.IsZero()
	})

	fetcher.set("app", buildingAfter("1", status.ResultFailure))
	if err := d.Refresh(ctx, p.ID); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	fetcher.set("app", sleepingWith("2", status.ResultSuccess))
	if err := d.Refresh(ctx, p.ID); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return len(alerts.bodies()) >= 2 })
	bodies := alerts.bodies()
	if !slices.Contains(bodies, "Recent changes fixed the build.") {
		t.Fatalf("expected fixed-the-build alert, got %v", bodies)
	}
	if bodies[0] != "Build started.\nLast build failed." {
		t.Fatalf("unexpected start alert %q", bodies[0])
	}

	stored, err := d.store.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Status.LastBuild == nil || stored.Status.LastBuild.Label != "2" {
		t.Fatalf("status not persisted: %+v", stored.Status)
	}
}

func TestRefreshFailureIsRecorded(t *testing.T) {
	cfg := testConfig(t)
	fetcher := newStateFetcher()
	d := newTestDaemon(t, cfg, fetcher, &recordingAlerts{})
	ctx := context.Background()

	p, err := d.AddPipeline(ctx, PipelineSpec{URL: "https://ci/cc.xml", Project: "app"})
	if err != nil {
		t.Fatalf("AddPipeline failed: %v", err)
	}
	fetcher.fail("app", errors.New("connection refused"))
	if err := d.Refresh(ctx, ""); err == nil {
		t.Fatal("expected refresh error")
	}
	got, err := d.Pipeline(p.ID)
	if err != nil || got.LastError == "" {
		t.Fatalf("expected recorded error, got %+v (%v)", got, err)
	}
	stored, err := d.store.Get(ctx, p.ID)
	if err != nil || stored.LastError == "" {
		t.Fatalf("expected persisted error, got %+v (%v)", stored, err)
	}
}

func TestAlertRefreshActionTriggersFetch(t *testing.T) {
	cfg := testConfig(t)
	cfg.Polling.IntervalSeconds = 3600
	fetcher := newStateFetcher()
	d := newTestDaemon(t, cfg, fetcher, &recordingAlerts{})
	ctx := context.Background()

	p, err := d.AddPipeline(ctx, PipelineSpec{URL: "https://ci/cc.xml", Project: "app"})
	if err != nil {
		t.Fatalf("AddPipeline failed: %v", err)
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return fetcher.callCount("app") >= 1 })
	before := fetcher.callCount("app")

	d.RespondToAlert(notifications.UserResponse{PipelineID: p.ID, Action: notifications.ActionRefresh})
	waitFor(t, 2*time.Second, func() bool { return fetcher.callCount("app") > before })
}

func TestSetAlertsEnabled(t *testing.T) {
	cfg := testConfig(t)
	d := newTestDaemon(t, cfg, newStateFetcher(), &recordingAlerts{})
	if err := d.SetAlertsEnabled(false); !errors.Is(err, ErrAlertsUnsupported) {
		t.Fatalf("expected ErrAlertsUnsupported, got %v", err)
	}

	ntfyCfg := testConfig(t, testsupport.WithNtfyTopic("https://ntfy.example.com/builds"))
	nd := newTestDaemon(t, ntfyCfg, newStateFetcher(), nil)
	if err := nd.SetAlertsEnabled(false); err != nil {
		t.Fatalf("SetAlertsEnabled failed: %v", err)
	}
	settings := nd.Status(context.Background()).Alerts
	if settings.AlertsEnabled {
		t.Fatal("expected alerts to be muted")
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	cfg := testConfig(t)
	d := newTestDaemon(t, cfg, newStateFetcher(), nil)
	sent, message, err := d.TestNotification(context.Background())
	if sent || err != nil || message != "ntfy topic not configured" {
		t.Fatalf("TestNotification = %v, %q, %v", sent, message, err)
	}
}
