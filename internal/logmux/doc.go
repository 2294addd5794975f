// Package logmux merges the output streams of several child processes
// into one labeled, optionally colored terminal feed.
//
// A Mux owns one reader goroutine per registered stream and a single
// writer goroutine that drains a shared channel, so lines from different
// processes interleave in arrival order while lines from the same stream
// keep their relative order. A stalled stream never blocks the others.
//
// Rendering is handled by Printer, which prefixes every line with its
// process label in brackets. Stderr lines carry a "!" suffix on the
// label. Label colors are derived from a hash of the process name, so a
// given process keeps its color across runs and machines.
package logmux
