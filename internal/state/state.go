package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"drover/internal/fileutil"
	"drover/internal/proc"
)

// Version is written into every state.json for forward compatibility.
const Version = 1

// Status is the lifecycle stage of one supervised process.
type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusStopped  Status = "stopped"
	StatusExited   Status = "exited"
)

// Live reports whether the status describes a process that still has a
// running system process behind it.
func (s Status) Live() bool {
	switch s {
	case StatusStarting, StatusRunning, StatusStopping:
		return true
	default:
		return false
	}
}

// ProcessRecord is the persisted view of one supervised process.
type ProcessRecord struct {
	Name       string    `json:"name"`
	PID        int       `json:"pid"`
	PGID       int       `json:"pgid"`
	Status     Status    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	StdoutPath string    `json:"stdout_path"`
	StderrPath string    `json:"stderr_path"`
}

// DaemonState is the full state.json document.
type DaemonState struct {
	Version      int             `json:"version"`
	ProjectRoot  string          `json:"project_root"`
	ProjectID    string          `json:"project_id"`
	ManagerPID   int             `json:"manager_pid"`
	ManagerRunID string          `json:"manager_run_id"`
	StartedAt    time.Time       `json:"started_at"`
	Processes    []ProcessRecord `json:"processes"`
}

// New builds the state document for a freshly started manager in the
// current process.
func New(root string) *DaemonState {
	return &DaemonState{
		Version:      Version,
		ProjectRoot:  canonicalRoot(root),
		ProjectID:    ProjectID(root),
		ManagerPID:   os.Getpid(),
		ManagerRunID: uuid.NewString(),
		StartedAt:    time.Now().UTC(),
	}
}

// Process returns the record for name, or nil. The pointer aliases the
// Processes slice so callers can update records in place.
func (s *DaemonState) Process(name string) *ProcessRecord {
	for i := range s.Processes {
		if s.Processes[i].Name == name {
			return &s.Processes[i]
		}
	}
	return nil
}

// LiveCount reports how many records still have a process behind them.
func (s *DaemonState) LiveCount() int {
	count := 0
	for i := range s.Processes {
		if s.Processes[i].Status.Live() {
			count++
		}
	}
	return count
}

// Load reads state.json from dir. A missing, unreadable, or corrupt
// file yields nil: stale or damaged state must never stop the tool.
func Load(dir string) *DaemonState {
	data, err := os.ReadFile(StatePath(dir))
	if err != nil {
		return nil
	}
	var st DaemonState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil
	}
	if st.Version != Version {
		return nil
	}
	return &st
}

// Save atomically replaces state.json in dir, creating dir if needed.
func Save(dir string, st *DaemonState) error {
	if err := fileutil.EnsureDir(dir); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	data = append(data, '\n')
	if err := fileutil.WriteFileAtomic(StatePath(dir), data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Remove deletes state.json and the manager pid file. The lock file is
// left for its holder to release.
func Remove(dir string) error {
	var errs []error
	for _, path := range []string{StatePath(dir), PIDPath(dir)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsStale reports whether the recorded manager process is gone. Stale
// state is left behind by a crashed or killed manager.
func IsStale(st *DaemonState) bool {
	if st == nil {
		return false
	}
	return !proc.Alive(st.ManagerPID)
}

// CleanupStale removes every control file a dead manager left behind.
// Per-process log files are kept for postmortem reading.
func CleanupStale(dir string) error {
	var errs []error
	paths := []string{StatePath(dir), PIDPath(dir), LockPath(dir), GracePath(dir)}
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WritePID records the manager pid in its conventional file.
func WritePID(dir string, pid int) error {
	if err := fileutil.EnsureDir(dir); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return os.WriteFile(PIDPath(dir), []byte(strconv.Itoa(pid)+"\n"), 0o644)
}
