// Package monitor keeps the status of every tracked pipeline current.
//
// A Monitor owns the pipeline collection and is its only writer. Each pipeline
// runs on its own worker goroutine with an independent timer; a deterministic
// per-server offset keeps pipelines that share a host from polling in lockstep.
// Fetches for one pipeline are funnelled through a single-flight group, so
// scheduled refreshes, manual triggers, and synchronous Refresh calls never
// overlap for the same id. Committed snapshots are compared with
// status.Classify and resulting changes fan out to subscribers in the order
// they were detected.
package monitor
