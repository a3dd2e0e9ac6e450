// Package logging assembles structured slog loggers and formatting helpers used
// across paperling.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so workflow code automatically
// tags log lines with document IDs and correlation IDs. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
