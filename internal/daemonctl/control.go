// Package daemonctl launches, inspects, and stops the background
// manager on behalf of the CLI. All coordination goes through the
// project state directory: the manager publishes state.json there and
// the CLI signals the manager PID recorded in it.
package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"drover/internal/fileutil"
	"drover/internal/proc"
	"drover/internal/state"
)

const (
	pollInterval = 200 * time.Millisecond

	// stopMargin pads the stop wait beyond the grace period so the
	// manager has time to persist final statuses and clean up.
	stopMargin = 3 * time.Second
)

// ErrNotRunning indicates no live manager exists for the project.
var ErrNotRunning = errors.New("manager not running")

// LaunchOptions carries the flags forwarded to the manager process.
type LaunchOptions struct {
	// Root is the project root the manager supervises. Required.
	Root string
	// Binary overrides manager binary resolution. Tests use this.
	Binary string
	// GraceSeconds overrides the configured stop grace period.
	// Negative leaves the choice to the manager.
	GraceSeconds int
	// LogLevel overrides the manager log level when non-empty.
	LogLevel string
	// Only restricts startup to the named processes.
	Only []string
}

// StartResult captures manager start orchestration state.
type StartResult struct {
	State          *state.DaemonState
	AlreadyRunning bool
}

// StopResult captures manager stop outcome.
type StopResult struct {
	PID        int
	Stopped    []string
	ForcedKill bool
}

// RestartResult captures stop and start outcomes for a restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	State      *state.DaemonState
}

// Current returns the live manager state for the project, cleaning up
// after a manager that died without removing its files. Returns
// ErrNotRunning when no manager is alive.
func Current(dir string) (*state.DaemonState, error) {
	st := state.Load(dir)
	if st == nil {
		return nil, ErrNotRunning
	}
	if state.IsStale(st) {
		_ = state.CleanupStale(dir)
		return nil, ErrNotRunning
	}
	return st, nil
}

// Launch starts a detached manager process. Its output is appended to
// manager.log in the state directory.
func Launch(dir string, opts LaunchOptions) error {
	root := strings.TrimSpace(opts.Root)
	if root == "" {
		return fmt.Errorf("launch manager: project root is empty")
	}
	bin, err := resolveBinary(opts.Binary)
	if err != nil {
		return err
	}

	args := []string{"--root", root}
	if opts.GraceSeconds >= 0 {
		args = append(args, "--grace", strconv.Itoa(opts.GraceSeconds))
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}
	for _, name := range opts.Only {
		args = append(args, "--only", name)
	}

	if err := fileutil.EnsureDir(dir); err != nil {
		return err
	}
	logFile, err := os.OpenFile(state.ManagerLogPath(dir), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open manager log: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(bin, args...)
	cmd.Dir = root
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch manager: %w", err)
	}
	return cmd.Process.Release()
}

// WaitForState polls until the manager has published state with every
// process past the starting phase, or the timeout elapses.
func WaitForState(dir string, timeout time.Duration) (*state.DaemonState, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		st := state.Load(dir)
		if st != nil && proc.Alive(st.ManagerPID) && startupSettled(st) {
			return st, nil
		}
		time.Sleep(pollInterval)
	}
	return nil, fmt.Errorf("manager did not report startup within %s (check %s)", timeout, state.ManagerLogPath(dir))
}

func startupSettled(st *state.DaemonState) bool {
	if len(st.Processes) == 0 {
		return false
	}
	for i := range st.Processes {
		if st.Processes[i].Status == state.StatusStarting {
			return false
		}
	}
	return true
}

// Start launches the manager unless one is already alive and waits for
// it to publish startup state.
func Start(dir string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if st, err := Current(dir); err == nil {
		return StartResult{State: st, AlreadyRunning: true}, nil
	}
	if err := Launch(dir, opts); err != nil {
		return StartResult{}, err
	}
	st, err := WaitForState(dir, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: st}, nil
}

// StopAndWait asks the manager to shut down with the given grace period
// and waits for it to exit. If the manager outlives the grace period
// plus margin it is killed along with every recorded process group.
func StopAndWait(dir string, grace time.Duration) (StopResult, error) {
	st, err := Current(dir)
	if err != nil {
		return StopResult{}, err
	}
	if grace < 0 {
		grace = 0
	}

	result := StopResult{PID: st.ManagerPID}
	for i := range st.Processes {
		if st.Processes[i].Status.Live() {
			result.Stopped = append(result.Stopped, st.Processes[i].Name)
		}
	}

	if err := state.WriteGrace(dir, grace); err != nil {
		return result, fmt.Errorf("record stop grace: %w", err)
	}
	if err := proc.SignalPID(st.ManagerPID, unix.SIGTERM); err != nil {
		return result, fmt.Errorf("signal manager %d: %w", st.ManagerPID, err)
	}

	deadline := time.Now().Add(grace + stopMargin)
	for time.Now().Before(deadline) {
		if !proc.Alive(st.ManagerPID) {
			_ = state.CleanupStale(dir)
			return result, nil
		}
		time.Sleep(pollInterval)
	}

	// Manager outlived its grace budget: kill it and every recorded
	// process group so nothing survives the stop.
	_ = proc.SignalPID(st.ManagerPID, unix.SIGKILL)
	for i := range st.Processes {
		rec := &st.Processes[i]
		if rec.Status.Live() && rec.PGID > 0 {
			_ = proc.SignalGroup(rec.PGID, unix.SIGKILL)
		}
	}
	_ = state.CleanupStale(dir)
	result.ForcedKill = true
	return result, nil
}

// Restart stops the manager if one is running, then starts a fresh one.
func Restart(dir string, grace time.Duration, opts LaunchOptions, waitTimeout time.Duration) (RestartResult, error) {
	stop, err := StopAndWait(dir, grace)
	wasRunning := err == nil
	if err != nil && !errors.Is(err, ErrNotRunning) {
		return RestartResult{}, err
	}

	started, err := Start(dir, opts, waitTimeout)
	if err != nil {
		return RestartResult{}, err
	}
	return RestartResult{WasRunning: wasRunning, Stop: stop, State: started.State}, nil
}

func resolveBinary(override string) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		return override, nil
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "droverd")
		if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	path, err := exec.LookPath("droverd")
	if err != nil {
		return "", fmt.Errorf("locate droverd: %w", err)
	}
	return path, nil
}
