// Package task resolves and executes the composite tasks defined in a
// project's configuration.
//
// Task names form a dotted namespace over a flat map. Requests accept
// either separator ("build:frontend" and "build.frontend" are the same
// task), group children without a separator nest under their parent,
// and qualified children are absolute. Resolution expands the full
// plan up front, so unknown names and group cycles are reported before
// anything runs.
//
// Execution follows the variant: a leaf runs its shell command in the
// foreground, a process reference brings up the named long-running
// processes with multiplexed output until interrupted, and a group
// runs its children in order (stopping at the first failure) or all at
// once (always letting every child finish, failing afterwards if any
// child failed).
package task
