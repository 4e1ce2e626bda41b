// Package logging assembles structured slog loggers for the cardplay daemon
// and CLI.
//
// It owns the console and JSON handlers, level and output plumbing, and the
// context helpers that tag every line of a dispatch with the scanned card and
// its correlation id. NewNop gives tests and optional wiring a logger that
// cannot fail.
package logging
