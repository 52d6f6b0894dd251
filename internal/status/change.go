package status

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChangeKind classifies a detected transition.
type ChangeKind string

const (
	ChangeStart      ChangeKind = "start"
	ChangeCompletion ChangeKind = "completion"
)

// ParseKind maps kind text onto the known values. Unrecognized text yields "".
func ParseKind(value string) ChangeKind {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "start", "started":
		return ChangeStart
	case "completion", "completed", "finished":
		return ChangeCompletion
	default:
		return ""
	}
}

// StatusChange is a transition between two committed snapshots of one pipeline.
// Pipeline.Status holds the new status.
type StatusChange struct {
	ID             string     `json:"id"`
	Kind           ChangeKind `json:"kind"`
	Pipeline       Pipeline   `json:"pipeline"`
	PreviousStatus Status     `json:"previous_status"`
	DetectedAt     time.Time  `json:"detected_at"`
}

// Classify compares the previous and new snapshot of a pipeline and reports the
// transition between them, if any.
//
// A pipeline entering building is a start, including when old is the empty
// sentinel. Leaving building with a last build present is a completion. Two
// non-building snapshots whose last builds differ by label also count as a
// completion, since an entire build ran between polls. Everything else,
// including incomplete input, yields no change.
func Classify(old, next Status, pipeline Pipeline) (StatusChange, bool) {
	kind, ok := classifyKind(old, next)
	if !ok {
		return StatusChange{}, false
	}
	snapshot := pipeline.Clone()
	snapshot.Status = next.Clone()
	return StatusChange{
		ID:             uuid.NewString(),
		Kind:           kind,
		Pipeline:       snapshot,
		PreviousStatus: old.Clone(),
		DetectedAt:     time.Now(),
	}, true
}

func classifyKind(old, next Status) (ChangeKind, bool) {
	if next.Activity == "" {
		return "", false
	}
	switch {
	case next.IsActive() && !old.IsActive():
		return ChangeStart, true
	case old.IsActive() && !next.IsActive():
		if next.LastBuild == nil {
			return "", false
		}
		return ChangeCompletion, true
	case !old.IsActive() && !next.IsActive():
		if old.IsEmpty() || next.LastBuild == nil || next.LastBuild.Label == "" {
			return "", false
		}
		if old.LastBuild != nil && old.LastBuild.Label == next.LastBuild.Label {
			return "", false
		}
		return ChangeCompletion, true
	}
	return "", false
}
