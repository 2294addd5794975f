// Package proc launches and signals the child processes managed by drover.
//
// Every command runs through the shell in its own process group, so a shell
// line that forks helpers of its own stays signalable as a unit. Callers pick
// an output mode per spawn: piped streams for multiplexed foreground output,
// inherited stdio for one-off tasks, or append-mode log files for daemonized
// processes.
//
// Teardown is deliberate rather than context-driven: supervision escalates
// SIGTERM to SIGKILL across the group with a grace period, so handles expose
// group signaling and liveness probes instead of tying child lifetime to a
// context.
package proc
