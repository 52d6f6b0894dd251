package api

import (
	"errors"
	"slices"
	"time"

	"buildwatch/internal/notifications"
	"buildwatch/internal/status"
)

// FromPipeline converts a monitor snapshot entry to its API representation.
func FromPipeline(p status.Pipeline) Pipeline {
	dto := Pipeline{
		ID:        p.ID,
		Name:      p.Name,
		Kind:      string(p.Server.Kind),
		URL:       p.Server.URL,
		Project:   p.Server.Project,
		Activity:  string(p.Status.Activity),
		LastBuild: FromBuild(p.Status.LastBuild),
		WebURL:    p.Status.WebURL,
		LastError: p.LastError,
	}
	dto.LastErrorAt = formatTime(p.LastErrorAt)
	dto.LastFetched = formatTime(p.LastFetched)
	return dto
}

// FromPipelines converts a snapshot preserving order.
func FromPipelines(pipelines []status.Pipeline) []Pipeline {
	out := make([]Pipeline, 0, len(pipelines))
	for _, p := range pipelines {
		out = append(out, FromPipeline(p))
	}
	return out
}

// FromBuild converts a build; nil stays nil.
func FromBuild(b *status.Build) *Build {
	if b == nil {
		return nil
	}
	dto := &Build{
		Label:        b.Label,
		Result:       string(b.Result),
		Timestamp:    formatTime(b.Timestamp),
		Contributors: slices.Clone(b.Contributors),
		WebURL:       b.WebURL,
	}
	if b.HasDuration() {
		dto.DurationSeconds = b.Duration.Seconds()
		dto.Duration = status.FormatDuration(*b.Duration)
	}
	return dto
}

// FromChange converts a status change, attaching the composed alert text.
func FromChange(change status.StatusChange) Change {
	dto := Change{
		ID:            change.ID,
		Kind:          string(change.Kind),
		DetectedAt:    formatTime(change.DetectedAt),
		Pipeline:      FromPipeline(change.Pipeline),
		PreviousBuild: FromBuild(change.PreviousStatus.LastBuild),
	}
	if content, ok := notifications.Compose(change); ok {
		dto.Title = content.Title
		dto.Message = content.Body
	}
	return dto
}

// Summarize counts pipelines by state for status displays.
func Summarize(pipelines []status.Pipeline) (building, failing, unreachable int) {
	for _, p := range pipelines {
		if p.Status.IsActive() {
			building++
		}
		if p.Status.LastBuild != nil && p.Status.LastBuild.Result == status.ResultFailure {
			failing++
		}
		if p.LastError != "" {
			unreachable++
		}
	}
	return building, failing, unreachable
}

// ErrorStrings flattens a possibly joined error into one message per cause.
func ErrorStrings(err error) []string {
	if err == nil {
		return nil
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, ErrorStrings(e)...)
		}
		return out
	}
	return []string{err.Error()}
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(dateTimeFormat)
}
