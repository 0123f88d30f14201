// Package logging assembles structured slog loggers and formatting helpers used
// across searchq services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so watcher and daemon code can
// tag log lines with record IDs, tab IDs, and correlation IDs. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
//
// The native messaging host must never log to stdout: that stream carries the
// browser protocol. Use Options.OutputPaths to route its output to a file.
package logging
