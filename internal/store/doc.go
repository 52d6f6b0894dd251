// Package store persists the ordered set of watched pipelines and their
// last-known status in SQLite.
//
// The store is what lets the daemon come back up with the same pipelines in
// the same order. Status snapshots are kept as JSON so a restarted daemon can
// show the previous state before its first refresh completes; the monitor
// still treats that snapshot as the baseline for change classification.
package store
