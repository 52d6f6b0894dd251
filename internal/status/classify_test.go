package status_test

import (
	"testing"
	"time"

	"buildwatch/internal/status"
)

func build(label string, result status.Result, duration time.Duration) *status.Build {
	b := &status.Build{Label: label, Result: result, Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	if duration > 0 {
		b.Duration = &duration
	}
	return b
}

func TestClassifyTransitions(t *testing.T) {
	sleepingOK := status.Status{Activity: status.ActivitySleeping, LastBuild: build("41", status.ResultSuccess, time.Minute)}
	building := status.Status{Activity: status.ActivityBuilding, LastBuild: build("41", status.ResultSuccess, time.Minute)}
	finished := status.Status{Activity: status.ActivitySleeping, LastBuild: build("42", status.ResultFailure, 2*time.Minute)}
	unknownDone := status.Status{Activity: status.ActivitySleeping, LastBuild: build("42", status.ResultUnknown, 0)}
	other := status.Status{Activity: status.ActivityOther, LastBuild: build("41", status.ResultSuccess, time.Minute)}

	tests := []struct {
		name     string
		old      status.Status
		next     status.Status
		wantKind status.ChangeKind
		wantOK   bool
	}{
		{name: "sleeping to building", old: sleepingOK, next: building, wantKind: status.ChangeStart, wantOK: true},
		{name: "other to building", old: other, next: building, wantKind: status.ChangeStart, wantOK: true},
		{name: "first snapshot building", old: status.Status{}, next: building, wantKind: status.ChangeStart, wantOK: true},
		{name: "building to sleeping", old: building, next: finished, wantKind: status.ChangeCompletion, wantOK: true},
		{name: "building to other", old: building, next: status.Status{Activity: status.ActivityOther, LastBuild: finished.LastBuild}, wantKind: status.ChangeCompletion, wantOK: true},
		{name: "unknown result is terminal", old: building, next: unknownDone, wantKind: status.ChangeCompletion, wantOK: true},
		{name: "new build between polls", old: sleepingOK, next: finished, wantKind: status.ChangeCompletion, wantOK: true},
		{name: "still building", old: building, next: building},
		{name: "still sleeping same build", old: sleepingOK, next: sleepingOK},
		{name: "first snapshot sleeping", old: status.Status{}, next: sleepingOK},
		{name: "stopped without last build", old: building, next: status.Status{Activity: status.ActivitySleeping}},
		{name: "empty new snapshot", old: building, next: status.Status{}},
		{name: "sleeping without builds", old: status.Status{Activity: status.ActivitySleeping}, next: status.Status{Activity: status.ActivitySleeping}},
	}

	pipeline := status.Pipeline{ID: "cctray:ci.example.com/app", Name: "app"}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			change, ok := status.Classify(tc.old, tc.next, pipeline)
			if ok != tc.wantOK {
				t.Fatalf("Classify ok = %v, want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if change.Kind != tc.wantKind {
				t.Fatalf("kind = %q, want %q", change.Kind, tc.wantKind)
			}
			if change.ID == "" {
				t.Fatal("expected change id")
			}
			if !change.Pipeline.Status.Equal(tc.next) {
				t.Fatalf("pipeline snapshot status = %+v, want %+v", change.Pipeline.Status, tc.next)
			}
			if !change.PreviousStatus.Equal(tc.old) {
				t.Fatalf("previous status = %+v, want %+v", change.PreviousStatus, tc.old)
			}
		})
	}
}

func TestClassifySnapshotIsDetached(t *testing.T) {
	old := status.Status{Activity: status.ActivityBuilding}
	next := status.Status{Activity: status.ActivitySleeping, LastBuild: build("7", status.ResultSuccess, time.Minute)}
	change, ok := status.Classify(old, next, status.Pipeline{ID: "p"})
	if !ok {
		t.Fatal("expected completion")
	}
	next.LastBuild.Label = "mutated"
	if change.Pipeline.Status.LastBuild.Label != "7" {
		t.Fatalf("change shares memory with input: %q", change.Pipeline.Status.LastBuild.Label)
	}
}

func TestParseHelpers(t *testing.T) {
	if got := status.ParseActivity("Building"); got != status.ActivityBuilding {
		t.Fatalf("ParseActivity(Building) = %q", got)
	}
	if got := status.ParseActivity("CheckingModifications"); got != status.ActivityOther {
		t.Fatalf("ParseActivity(CheckingModifications) = %q", got)
	}
	if got := status.ParseResult("Exception"); got != status.ResultFailure {
		t.Fatalf("ParseResult(Exception) = %q", got)
	}
	if got := status.ParseResult(""); got != status.ResultUnknown {
		t.Fatalf("ParseResult(\"\") = %q", got)
	}
	if got := status.ParseKind(" Start "); got != status.ChangeStart {
		t.Fatalf("ParseKind(Start) = %q", got)
	}
	if got := status.ParseKind("completion"); got != status.ChangeCompletion {
		t.Fatalf("ParseKind(completion) = %q", got)
	}
	if got := status.ParseKind("deploy"); got != "" {
		t.Fatalf("ParseKind(deploy) = %q", got)
	}
}

func TestPipelineIDUsesHostAndProject(t *testing.T) {
	id := status.PipelineID(status.Server{Kind: status.ServerCCTray, URL: "https://CI.example.com:8080/cc.xml", Project: " app "})
	if id != "cctray:ci.example.com:8080/app" {
		t.Fatalf("unexpected id %q", id)
	}
}
