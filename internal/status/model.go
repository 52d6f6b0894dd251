package status

import (
	"slices"
	"strings"
	"time"
)

// Activity reports whether a pipeline is currently executing a build.
type Activity string

const (
	ActivitySleeping Activity = "sleeping"
	ActivityBuilding Activity = "building"
	ActivityOther    Activity = "other"
)

// ParseActivity maps free-form activity text onto the known values.
// Unrecognized text becomes ActivityOther.
func ParseActivity(value string) Activity {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "sleeping", "idle":
		return ActivitySleeping
	case "building", "running", "in_progress":
		return ActivityBuilding
	default:
		return ActivityOther
	}
}

// Result is the outcome of a finished build.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultUnknown Result = "unknown"
)

// ParseResult maps result text onto the known values.
func ParseResult(value string) Result {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "success", "succeeded", "passed":
		return ResultSuccess
	case "failure", "failed", "error", "exception":
		return ResultFailure
	default:
		return ResultUnknown
	}
}

// Build is one execution attempt of a pipeline.
type Build struct {
	Label        string         `json:"label"`
	Timestamp    time.Time      `json:"timestamp"`
	Duration     *time.Duration `json:"duration,omitempty"`
	Result       Result         `json:"result"`
	Contributors []string       `json:"contributors,omitempty"`
	WebURL       string         `json:"web_url,omitempty"`
}

// HasDuration reports whether the build carries a known duration.
func (b *Build) HasDuration() bool {
	return b != nil && b.Duration != nil
}

// WithDuration returns a copy of the build carrying d.
func (b Build) WithDuration(d time.Duration) Build {
	b.Duration = &d
	b.Contributors = slices.Clone(b.Contributors)
	return b
}

// Equal compares two builds by value.
func (b *Build) Equal(other *Build) bool {
	if b == nil || other == nil {
		return b == nil && other == nil
	}
	if b.Label != other.Label || b.Result != other.Result || b.WebURL != other.WebURL {
		return false
	}
	if !b.Timestamp.Equal(other.Timestamp) {
		return false
	}
	if (b.Duration == nil) != (other.Duration == nil) {
		return false
	}
	if b.Duration != nil && *b.Duration != *other.Duration {
		return false
	}
	return slices.Equal(b.Contributors, other.Contributors)
}

// Status is the most recently observed snapshot for one pipeline.
// The zero value is the empty sentinel used before the first fetch.
type Status struct {
	Activity  Activity `json:"activity"`
	LastBuild *Build   `json:"last_build,omitempty"`
	WebURL    string   `json:"web_url,omitempty"`
}

// IsEmpty reports whether s is the sentinel empty status.
func (s Status) IsEmpty() bool {
	return s.Activity == "" && s.LastBuild == nil && s.WebURL == ""
}

// IsActive reports whether a build is currently running.
func (s Status) IsActive() bool {
	return s.Activity == ActivityBuilding
}

// Equal compares two statuses by value.
func (s Status) Equal(other Status) bool {
	return s.Activity == other.Activity && s.WebURL == other.WebURL && s.LastBuild.Equal(other.LastBuild)
}

// Clone returns a deep copy so callers can hand the value to other goroutines.
func (s Status) Clone() Status {
	if s.LastBuild != nil {
		build := *s.LastBuild
		if build.Duration != nil {
			d := *build.Duration
			build.Duration = &d
		}
		build.Contributors = slices.Clone(build.Contributors)
		s.LastBuild = &build
	}
	return s
}

// ServerKind selects the connector used to fetch a pipeline's status.
type ServerKind string

const (
	ServerCCTray ServerKind = "cctray"
	ServerGitHub ServerKind = "github"
)

// Server describes how to reach the CI server hosting a pipeline.
type Server struct {
	Kind    ServerKind `json:"kind"`
	URL     string     `json:"url"`
	Project string     `json:"project"`
	User    string     `json:"user,omitempty"`
	Token   string     `json:"-"`
}

// Host returns the URL host used to group pipelines per server.
func (s Server) Host() string {
	raw := strings.TrimSpace(s.URL)
	if idx := strings.Index(raw, "://"); idx >= 0 {
		raw = raw[idx+3:]
	}
	if idx := strings.IndexAny(raw, "/?#"); idx >= 0 {
		raw = raw[:idx]
	}
	return strings.ToLower(raw)
}

// Pipeline is a tracked CI build job.
type Pipeline struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Server      Server    `json:"server"`
	Status      Status    `json:"status"`
	LastError   string    `json:"last_error,omitempty"`
	LastErrorAt time.Time `json:"last_error_at,omitzero"`
	LastFetched time.Time `json:"last_fetched,omitzero"`
}

// Clone returns a deep copy of the pipeline.
func (p Pipeline) Clone() Pipeline {
	p.Status = p.Status.Clone()
	return p
}

// PipelineID derives the stable identity of a pipeline from its server and project.
func PipelineID(server Server) string {
	return string(server.Kind) + ":" + server.Host() + "/" + strings.TrimSpace(server.Project)
}
