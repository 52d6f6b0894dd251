// Package logging assembles structured slog loggers and formatting helpers used
// across buildwatch services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so monitor and dispatcher code can
// tag log lines with pipeline and change identifiers. The package also provides
// a no-op logger for tests and wiring code that cannot fail.
package logging
