package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Build describes the most recent finished build of a pipeline.
type Build struct {
	Label           string   `json:"label"`
	Result          string   `json:"result"`
	Timestamp       string   `json:"timestamp,omitempty"`
	DurationSeconds float64  `json:"durationSeconds,omitempty"`
	Duration        string   `json:"duration,omitempty"`
	Contributors    []string `json:"contributors,omitempty"`
	WebURL          string   `json:"webUrl,omitempty"`
}

// Pipeline describes a watched pipeline in a transport-friendly format.
type Pipeline struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	URL         string `json:"url"`
	Project     string `json:"project"`
	Activity    string `json:"activity"`
	LastBuild   *Build `json:"lastBuild,omitempty"`
	WebURL      string `json:"webUrl,omitempty"`
	LastError   string `json:"lastError,omitempty"`
	LastErrorAt string `json:"lastErrorAt,omitempty"`
	LastFetched string `json:"lastFetched,omitempty"`
}

// Change describes one detected status change.
type Change struct {
	ID            string   `json:"id"`
	Kind          string   `json:"kind"`
	DetectedAt    string   `json:"detectedAt"`
	Title         string   `json:"title"`
	Message       string   `json:"message"`
	Pipeline      Pipeline `json:"pipeline"`
	PreviousBuild *Build   `json:"previousBuild,omitempty"`
}

// DaemonStatus captures runtime information about the daemon.
type DaemonStatus struct {
	Running          bool   `json:"running"`
	PID              int    `json:"pid"`
	DatabasePath     string `json:"databasePath"`
	LockFilePath     string `json:"lockFilePath"`
	APIAddress       string `json:"apiAddress,omitempty"`
	Pipelines        int    `json:"pipelines"`
	Building         int    `json:"building"`
	Failing          int    `json:"failing"`
	Unreachable      int    `json:"unreachable"`
	AlertsAuthorized bool   `json:"alertsAuthorized"`
	AlertsEnabled    bool   `json:"alertsEnabled"`
	Publishing       bool   `json:"publishing"`
}

// PipelineListResponse wraps the ordered pipeline snapshot.
type PipelineListResponse struct {
	Pipelines []Pipeline `json:"pipelines"`
}

// PipelineResponse wraps a single pipeline.
type PipelineResponse struct {
	Pipeline Pipeline `json:"pipeline"`
}

// RefreshResponse reports the snapshot after a manual refresh and any
// per-pipeline fetch errors.
type RefreshResponse struct {
	Pipelines []Pipeline `json:"pipelines"`
	Errors    []string   `json:"errors,omitempty"`
}

// AlertResponse acknowledges an alert action.
type AlertResponse struct {
	Accepted bool   `json:"accepted"`
	Action   string `json:"action"`
}
