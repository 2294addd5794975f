// Package state persists what the supervisor knows about a project's
// processes between CLI invocations.
//
// Every project root maps to a directory under $XDG_STATE_HOME/drover
// (or ~/.local/state/drover) named by a short hash of the canonical
// root path. The directory holds state.json, the manager pid, lock and
// log files, and per-process log files under logs/.
//
// state.json is the source of truth for status reporting. It is always
// replaced atomically, loads soft-fail to "no state" rather than
// erroring, and records left behind by a dead manager are detected with
// IsStale and cleared with CleanupStale.
package state
