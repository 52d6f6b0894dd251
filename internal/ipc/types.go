package ipc

import "buildwatch/internal/api"

// Pipeline mirrors the HTTP API pipeline DTO for internal IPC callers.
type Pipeline = api.Pipeline

// StartRequest triggers polling startup.
type StartRequest struct{}

// StartResponse indicates whether polling was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops polling.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and pipeline status.
type StatusResponse struct {
	Running          bool       `json:"running"`
	PID              int        `json:"pid"`
	SessionID        string     `json:"session_id"`
	StartedAt        string     `json:"started_at,omitempty"`
	LockPath         string     `json:"lock_path"`
	DatabasePath     string     `json:"database_path"`
	APIAddress       string     `json:"api_address,omitempty"`
	AlertsAuthorized bool       `json:"alerts_authorized"`
	AlertsEnabled    bool       `json:"alerts_enabled"`
	Publishing       bool       `json:"publishing"`
	Building         int        `json:"building"`
	Failing          int        `json:"failing"`
	Unreachable      int        `json:"unreachable"`
	Pipelines        []Pipeline `json:"pipelines"`
}

// PipelineListRequest lists watched pipelines.
type PipelineListRequest struct{}

// PipelineListResponse contains watched pipelines in display order.
type PipelineListResponse struct {
	Pipelines []Pipeline `json:"pipelines"`
}

// PipelineAddRequest describes a pipeline to start watching.
type PipelineAddRequest struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	URL     string `json:"url"`
	Project string `json:"project"`
	User    string `json:"user"`
	Token   string `json:"token"`
}

// PipelineAddResponse returns the added pipeline.
type PipelineAddResponse struct {
	Pipeline Pipeline `json:"pipeline"`
}

// PipelineRemoveRequest stops watching a pipeline.
type PipelineRemoveRequest struct {
	ID string `json:"id"`
}

// PipelineRemoveResponse reports whether the pipeline was removed.
type PipelineRemoveResponse struct {
	Removed bool `json:"removed"`
}

// RefreshRequest refreshes one pipeline, or all when ID is empty.
type RefreshRequest struct {
	ID string `json:"id"`
}

// RefreshResponse returns pipelines after the refresh plus any fetch errors.
type RefreshResponse struct {
	Pipelines []Pipeline `json:"pipelines"`
	Errors    []string   `json:"errors,omitempty"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the test notification result.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// SetAlertsRequest mutes or unmutes alert delivery.
type SetAlertsRequest struct {
	Enabled bool `json:"enabled"`
}

// SetAlertsResponse echoes the resulting alert state.
type SetAlertsResponse struct {
	Enabled bool `json:"enabled"`
}
