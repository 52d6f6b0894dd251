package publish

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"buildwatch/internal/config"
	"buildwatch/internal/status"
)

type fakeRedis struct {
	mu         sync.Mutex
	published  []string
	keys       map[string]string
	publishErr error
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return redis.NewIntResult(0, f.publishErr)
	}
	f.published = append(f.published, channel+"|"+string(message.([]byte)))
	return redis.NewIntResult(1, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys == nil {
		f.keys = map[string]string{}
	}
	f.keys[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) Close() error { return nil }

func sampleChange() status.StatusChange {
	d := 90 * time.Second
	return status.StatusChange{
		ID:   "c1",
		Kind: status.ChangeCompletion,
		Pipeline: status.Pipeline{
			ID:   "cctray:ci/app",
			Name: "app",
			Status: status.Status{
				Activity:  status.ActivitySleeping,
				LastBuild: &status.Build{Label: "7", Result: status.ResultSuccess, Duration: &d, WebURL: "https://ci/app/7"},
			},
		},
		PreviousStatus: status.Status{Activity: status.ActivityBuilding, LastBuild: &status.Build{Label: "6", Result: status.ResultFailure}},
		DetectedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewEventFlattensChange(t *testing.T) {
	evt := NewEvent(sampleChange())
	if evt.Kind != "completion" || evt.Label != "7" || evt.Result != "success" || evt.PreviousResult != "failure" {
		t.Fatalf("unexpected event %+v", evt)
	}
	if evt.DurationSeconds != 90 || evt.WebURL != "https://ci/app/7" {
		t.Fatalf("unexpected duration/url %+v", evt)
	}
}

func TestRunPublishesAndStoresLatest(t *testing.T) {
	fake := &fakeRedis{}
	p := newPublisher(fake, "builds", nil)

	changes := make(chan status.StatusChange, 1)
	changes <- sampleChange()
	close(changes)
	if err := p.Run(context.Background(), changes); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if len(fake.published) != 1 {
		t.Fatalf("expected one publish, got %d", len(fake.published))
	}
	stored, ok := fake.keys["buildwatch:pipeline:cctray:ci/app"]
	if !ok {
		t.Fatalf("latest event not stored: %v", fake.keys)
	}
	var evt Event
	if err := json.Unmarshal([]byte(stored), &evt); err != nil {
		t.Fatalf("decode stored event: %v", err)
	}
	if evt.ID != "c1" || evt.PipelineName != "app" {
		t.Fatalf("unexpected stored event %+v", evt)
	}
}

func TestPublishReportsErrors(t *testing.T) {
	fake := &fakeRedis{publishErr: errors.New("connection refused")}
	p := newPublisher(fake, "builds", nil)
	if err := p.Publish(context.Background(), sampleChange()); err == nil {
		t.Fatal("expected publish error")
	}
	if len(fake.keys) != 0 {
		t.Fatal("latest event should not be stored when publish fails")
	}
}

func TestNewWithoutURLReturnsNil(t *testing.T) {
	cfg := config.Default()
	p, err := New(&cfg, nil)
	if err != nil || p != nil {
		t.Fatalf("New = %v, %v", p, err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("nil Close returned %v", err)
	}
}
