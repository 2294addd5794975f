// Package logs reads the per-process log files the supervisor writes.
//
// Tail returns the last N lines with bounded memory and reports the
// byte offset where it stopped, so follow mode can resume without
// skipping or repeating lines. Follow polls for appended data, emits
// only complete lines, and recovers from truncation by restarting at
// the top of the file. FollowSet drives several followers at once and
// renders them through a shared labeled printer.
//
// Use this package whenever you need consistent log viewing semantics
// instead of re-implementing ad-hoc tail logic.
package logs
