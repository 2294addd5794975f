package proc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// OutputMode selects how a spawned child's stdout and stderr are handled.
type OutputMode int

const (
	// OutputPipe exposes stdout and stderr as independent read streams.
	OutputPipe OutputMode = iota
	// OutputInherit passes the invoking terminal's stdio through.
	OutputInherit
	// OutputFiles appends stdout and stderr to the paths in the Spec.
	OutputFiles
)

// Spec describes one child process launch.
type Spec struct {
	// Name labels the process in errors and logs.
	Name string
	// Command is the shell line to run.
	Command string
	// Dir is the working directory. Empty inherits the parent's.
	Dir string
	// Args are extra arguments appended to the command line.
	Args []string

	Output OutputMode
	// StdoutPath and StderrPath receive output in OutputFiles mode.
	StdoutPath string
	StderrPath string
}

// SpawnError wraps an OS-level launch failure.
type SpawnError struct {
	Name string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Name, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Result records how a child terminated. When the child was killed by a
// signal, Code follows the shell convention of 128 plus the signal number.
type Result struct {
	Code     int
	Signaled bool
	Signal   unix.Signal
}

// Handle tracks one spawned child.
type Handle struct {
	name string
	cmd  *exec.Cmd
	pid  int
	pgid int

	// Stdout and Stderr are non-nil only in OutputPipe mode.
	Stdout io.ReadCloser
	Stderr io.ReadCloser

	waitOnce sync.Once
	done     chan struct{}
	result   Result
	waitErr  error
}

// Spawn launches spec's command via `sh -c` in a new process group.
func Spawn(spec Spec) (*Handle, error) {
	if strings.TrimSpace(spec.Command) == "" {
		return nil, &SpawnError{Name: spec.Name, Err: fmt.Errorf("empty command")}
	}

	script := spec.Command
	argv := []string{"-c", script}
	if len(spec.Args) > 0 {
		// Positional forwarding keeps argument boundaries intact instead of
		// re-quoting into the command string.
		argv = []string{"-c", script + ` "$@"`, "drover"}
		argv = append(argv, spec.Args...)
	}

	cmd := exec.Command("sh", argv...)
	cmd.Dir = spec.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	handle := &Handle{name: spec.Name, cmd: cmd, done: make(chan struct{})}

	var logFiles []*os.File
	switch spec.Output {
	case OutputPipe:
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, &SpawnError{Name: spec.Name, Err: err}
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return nil, &SpawnError{Name: spec.Name, Err: err}
		}
		handle.Stdout = stdout
		handle.Stderr = stderr
	case OutputInherit:
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	case OutputFiles:
		stdout, err := openLogFile(spec.StdoutPath)
		if err != nil {
			return nil, &SpawnError{Name: spec.Name, Err: err}
		}
		stderr, err := openLogFile(spec.StderrPath)
		if err != nil {
			stdout.Close()
			return nil, &SpawnError{Name: spec.Name, Err: err}
		}
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		logFiles = []*os.File{stdout, stderr}
	default:
		return nil, &SpawnError{Name: spec.Name, Err: fmt.Errorf("unknown output mode %d", spec.Output)}
	}

	if err := cmd.Start(); err != nil {
		for _, file := range logFiles {
			file.Close()
		}
		return nil, &SpawnError{Name: spec.Name, Err: err}
	}

	// The child owns the log file descriptors now.
	for _, file := range logFiles {
		file.Close()
	}

	handle.pid = cmd.Process.Pid
	// Setpgid with Pgid 0 makes the child the leader of a fresh group.
	handle.pgid = cmd.Process.Pid
	return handle, nil
}

func openLogFile(path string) (*os.File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("empty log path")
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// Name returns the label the child was spawned under.
func (h *Handle) Name() string {
	return h.name
}

// PID returns the child's process id.
func (h *Handle) PID() int {
	return h.pid
}

// PGID returns the child's process group id.
func (h *Handle) PGID() int {
	return h.pgid
}

// Wait reaps the child and returns its termination result. Safe to call from
// multiple goroutines; every caller observes the same result.
func (h *Handle) Wait() (Result, error) {
	h.waitOnce.Do(func() {
		defer close(h.done)
		err := h.cmd.Wait()
		if err == nil {
			h.result = Result{Code: 0}
			return
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			h.waitErr = err
			h.result = Result{Code: -1}
			return
		}
		status, ok := exitErr.Sys().(syscall.WaitStatus)
		switch {
		case ok && status.Signaled():
			sig := unix.Signal(status.Signal())
			h.result = Result{Code: 128 + int(sig), Signaled: true, Signal: sig}
		case ok:
			h.result = Result{Code: status.ExitStatus()}
		default:
			h.result = Result{Code: exitErr.ExitCode()}
		}
	})
	<-h.done
	return h.result, h.waitErr
}

// Done is closed once a Wait call has reaped the child.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Signal delivers sig to the child's whole process group.
func (h *Handle) Signal(sig unix.Signal) error {
	return SignalGroup(h.pgid, sig)
}
