// Package logging assembles the structured slog loggers used by droverd and
// the CLI.
//
// It owns the console and JSON handlers, centralizes level parsing and output
// plumbing, and provides component loggers so daemon subsystems tag their
// lines uniformly. A no-op logger is available for tests and wiring code that
// cannot fail.
//
// Process output captured from managed children is not routed through this
// package; it is product output, written raw through the log multiplexer.
package logging
