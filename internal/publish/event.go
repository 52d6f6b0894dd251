package publish

import (
	"time"

	"buildwatch/internal/status"
)

// Event is the wire form of a status change.
type Event struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	PipelineID      string    `json:"pipeline_id"`
	PipelineName    string    `json:"pipeline_name"`
	Activity        string    `json:"activity"`
	Label           string    `json:"label,omitempty"`
	Result          string    `json:"result,omitempty"`
	PreviousResult  string    `json:"previous_result,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	WebURL          string    `json:"web_url,omitempty"`
	DetectedAt      time.Time `json:"detected_at"`
}

// NewEvent flattens change into an Event.
func NewEvent(change status.StatusChange) Event {
	current := change.Pipeline.Status
	evt := Event{
		ID:           change.ID,
		Kind:         string(change.Kind),
		PipelineID:   change.Pipeline.ID,
		PipelineName: change.Pipeline.Name,
		Activity:     string(current.Activity),
		WebURL:       current.WebURL,
		DetectedAt:   change.DetectedAt.UTC(),
	}
	if build := current.LastBuild; build != nil {
		evt.Label = build.Label
		evt.Result = string(build.Result)
		if build.HasDuration() {
			evt.DurationSeconds = build.Duration.Seconds()
		}
		if build.WebURL != "" {
			evt.WebURL = build.WebURL
		}
	}
	if prev := change.PreviousStatus.LastBuild; prev != nil {
		evt.PreviousResult = string(prev.Result)
	}
	return evt
}
