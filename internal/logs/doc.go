// Package logs reads the daemon log file for `buildwatch logs`: the last N
// lines, then optionally everything appended after them.
package logs
