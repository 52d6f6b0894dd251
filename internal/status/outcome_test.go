package status_test

import (
	"testing"
	"time"

	"buildwatch/internal/status"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{in: 0, want: ""},
		{in: 500 * time.Millisecond, want: ""},
		{in: time.Second, want: "1 second"},
		{in: 45 * time.Second, want: "45 seconds"},
		{in: 61 * time.Second, want: "1 minute 1 second"},
		{in: 5 * time.Minute, want: "5 minutes"},
		{in: 90 * time.Minute, want: "1 hour 30 minutes"},
		{in: 2*time.Hour + 30*time.Second, want: "2 hours"},
		{in: 2*time.Hour + time.Minute + 59*time.Second, want: "2 hours 1 minute"},
		{in: 26 * time.Hour, want: "26 hours"},
	}
	for _, tc := range tests {
		if got := status.FormatDuration(tc.in); got != tc.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDescribeOutcome(t *testing.T) {
	tests := []struct {
		name  string
		build *status.Build
		want  string
	}{
		{name: "nil build", build: nil, want: ""},
		{name: "success with duration", build: build("1", status.ResultSuccess, 90*time.Minute), want: "took 1 hour 30 minutes"},
		{name: "failure with duration", build: build("1", status.ResultFailure, 3*time.Minute), want: "failed after 3 minutes"},
		{name: "unknown with duration", build: build("1", status.ResultUnknown, 3*time.Minute), want: "took 3 minutes"},
		{name: "success without duration", build: build("1", status.ResultSuccess, 0), want: "successful"},
		{name: "failure without duration", build: build("1", status.ResultFailure, 0), want: "failed"},
		{name: "unknown without duration", build: build("1", status.ResultUnknown, 0), want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.build.DescribeOutcome(); got != tc.want {
				t.Fatalf("DescribeOutcome() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDescribeOutcomeZeroDurationFallsBackToResult(t *testing.T) {
	zero := time.Duration(0)
	b := &status.Build{Result: status.ResultSuccess, Duration: &zero}
	if got := b.DescribeOutcome(); got != "successful" {
		t.Fatalf("DescribeOutcome() = %q, want successful", got)
	}
}

func TestStatusEqualAndClone(t *testing.T) {
	original := status.Status{Activity: status.ActivitySleeping, LastBuild: build("9", status.ResultSuccess, time.Minute)}
	original.LastBuild.Contributors = []string{"ada"}
	clone := original.Clone()
	if !clone.Equal(original) {
		t.Fatal("clone should equal original")
	}
	*clone.LastBuild.Duration = time.Hour
	clone.LastBuild.Contributors[0] = "grace"
	if *original.LastBuild.Duration != time.Minute || original.LastBuild.Contributors[0] != "ada" {
		t.Fatal("clone shares memory with original")
	}
	if clone.Equal(original) {
		t.Fatal("modified clone should differ")
	}
	if !(status.Status{}).IsEmpty() || original.IsEmpty() {
		t.Fatal("IsEmpty mismatch")
	}
}
