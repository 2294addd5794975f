// Package supervisor is the daemon core: it spawns a project's
// processes into their own process groups, tracks their lifecycle in
// the persisted daemon state, and tears everything down through the
// SIGTERM, grace period, SIGKILL escalation when the manager is told
// to stop.
//
// Each process moves through starting, running and then either exited
// (it died on its own, exit status recorded, never restarted) or
// stopping and stopped (we shut it down). Every transition is persisted
// before the supervisor moves on, so a status invocation racing the
// daemon always reads state at least as fresh as the last completed
// transition.
//
// Shutdown is a barrier, not fire-and-forget: the manager only returns
// from Shutdown once every process group has been reaped or force
// killed. A stop request can carry its own grace period in the state
// directory's drop file, which takes precedence over the configured
// default for that one shutdown.
package supervisor
