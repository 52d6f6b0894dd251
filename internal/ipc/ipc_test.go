package ipc_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"buildwatch/internal/daemon"
	"buildwatch/internal/ipc"
	"buildwatch/internal/logging"
	"buildwatch/internal/status"
	"buildwatch/internal/testsupport"
)

type fixedFetcher struct {
	mu  sync.Mutex
	st  status.Status
	err error
}

func (f *fixedFetcher) FetchStatus(context.Context, status.Server) (status.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return status.Status{}, f.err
	}
	return f.st.Clone(), nil
}

func (f *fixedFetcher) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func TestIPCServerClient(t *testing.T) {
	published := make(chan string, 8)
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case published <- r.Header.Get("Title"):
		default:
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ntfy.Close)

	cfg := testsupport.NewConfig(t,
		testsupport.WithPipeline("Web", "cctray", "https://ci.example.com/cc.xml", "web"),
		testsupport.WithNtfyTopic(ntfy.URL+"/builds"),
	)
	cfg.Paths.APIBind = ""
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	fetcher := &fixedFetcher{st: status.Status{
		Activity:  status.ActivitySleeping,
		LastBuild: &status.Build{Label: "12", Result: status.ResultSuccess},
	}}
	d, err := daemon.New(cfg, store, logger, daemon.Options{Fetcher: fetcher})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	startResp, err := client.Start()
	if err != nil {
		t.Fatalf("Start RPC failed: %v", err)
	}
	if !startResp.Started {
		t.Fatalf("expected Started=true, message=%s", startResp.Message)
	}

	st, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !st.Running || st.SessionID == "" || st.StartedAt == "" {
		t.Fatalf("unexpected status %+v", st)
	}
	if len(st.Pipelines) != 1 || st.Pipelines[0].Name != "Web" {
		t.Fatalf("expected seeded pipeline, got %+v", st.Pipelines)
	}

	added, err := client.PipelineAdd(ipc.PipelineAddRequest{URL: "https://ci.example.com/cc.xml", Project: "api-server"})
	if err != nil {
		t.Fatalf("PipelineAdd failed: %v", err)
	}
	if added.Pipeline.Name != "Api Server" {
		t.Fatalf("expected derived name, got %q", added.Pipeline.Name)
	}
	if _, err := client.PipelineAdd(ipc.PipelineAddRequest{URL: "https://ci.example.com/cc.xml", Project: "api-server"}); err == nil {
		t.Fatal("expected duplicate pipeline error")
	}

	refreshed, err := client.Refresh(added.Pipeline.ID)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if len(refreshed.Pipelines) != 1 || refreshed.Pipelines[0].LastBuild == nil || refreshed.Pipelines[0].LastBuild.Label != "12" {
		t.Fatalf("unexpected refresh %+v", refreshed)
	}

	fetcher.fail(errors.New("dial tcp: connection refused"))
	refreshed, err = client.Refresh("")
	if err != nil {
		t.Fatalf("Refresh all failed: %v", err)
	}
	if len(refreshed.Errors) != 2 || len(refreshed.Pipelines) != 2 {
		t.Fatalf("expected two recorded failures, got %+v", refreshed)
	}
	if _, err := client.Refresh("cctray:nowhere/ghost"); err == nil {
		t.Fatal("expected unknown pipeline error")
	}

	if _, err := client.PipelineRemove(added.Pipeline.ID); err != nil {
		t.Fatalf("PipelineRemove failed: %v", err)
	}
	list, err := client.PipelineList()
	if err != nil {
		t.Fatalf("PipelineList failed: %v", err)
	}
	if len(list.Pipelines) != 1 {
		t.Fatalf("expected one pipeline after remove, got %d", len(list.Pipelines))
	}

	testResp, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if !testResp.Sent {
		t.Fatalf("expected test notification to be sent: %s", testResp.Message)
	}
	select {
	case title := <-published:
		if title != "buildwatch" {
			t.Fatalf("unexpected notification title %q", title)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("test notification never reached ntfy")
	}

	alerts, err := client.SetAlerts(false)
	if err != nil {
		t.Fatalf("SetAlerts failed: %v", err)
	}
	if alerts.Enabled {
		t.Fatal("expected alerts muted")
	}

	stopResp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !stopResp.Stopped {
		t.Fatal("expected Stop to report stopped")
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		st, err = client.Status()
		if err != nil {
			t.Fatalf("Status RPC failed: %v", err)
		}
		if !st.Running || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if st.Running {
		t.Fatal("expected daemon to report stopped")
	}
}
