package testsupport

import (
	"context"
	"testing"

	"buildwatch/internal/config"
	"buildwatch/internal/status"
	"buildwatch/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewPipeline builds a CCTray pipeline for project on url.
func NewPipeline(url, project string) status.Pipeline {
	server := status.Server{Kind: status.ServerCCTray, URL: url, Project: project}
	return status.Pipeline{ID: status.PipelineID(server), Name: project, Server: server}
}

// AddPipeline stores a CCTray pipeline for tests.
func AddPipeline(t testing.TB, st *store.Store, url, project string) status.Pipeline {
	t.Helper()

	p := NewPipeline(url, project)
	if err := st.Add(context.Background(), p); err != nil {
		t.Fatalf("store.Add: %v", err)
	}
	return p
}
