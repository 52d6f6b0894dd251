// Package api defines wire-format types and converters shared by the IPC and
// HTTP layers. It turns monitor snapshots and status changes into DTOs that
// the CLI, dashboards and websocket clients can render without depending on
// internal types.
//
// # Key Types
//
// Pipeline: one watched pipeline with its activity, last build and fetch
// bookkeeping.
//
// Change: a detected start or completion, carrying the same alert text the
// notifier would deliver.
//
// DaemonStatus: running state, file locations and alert gating.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Enums are lowercase strings and timestamps
// use RFC3339 with milliseconds. Server credentials are never exposed.
package api
