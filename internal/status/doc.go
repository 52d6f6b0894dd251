// Package status defines the vocabulary shared by every buildwatch component:
// builds, activity, per-pipeline status snapshots, and the transitions the
// monitor detects between two snapshots.
//
// Values in this package are plain data. A Status is always replaced as a
// whole; nothing mutates one in place once it has been committed to a
// Pipeline. Classify compares two snapshots and reports at most one
// StatusChange, degrading to "no change" whenever the input is incomplete.
package status
