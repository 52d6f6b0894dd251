// Package daemon coordinates the long-running buildwatch process.
//
// It wires configuration, the pipeline store, the monitor, the alert
// dispatcher and the optional Redis publisher into a single lifecycle with
// flock-based locking to prevent multiple instances. Pipeline edits go through
// the store first and then the monitor so a crash never leaves the monitor
// watching something the store forgot.
//
// The daemon also owns the HTTP API: a gorilla/mux router serving pipeline
// snapshots, manual refreshes, alert callbacks and a websocket stream of
// detected changes.
package daemon
