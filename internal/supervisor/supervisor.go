package supervisor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"drover/internal/config"
	"drover/internal/fileutil"
	"drover/internal/logging"
	"drover/internal/proc"
	"drover/internal/state"
)

// DefaultGrace bounds how long stopping processes get between SIGTERM
// and SIGKILL when nothing else was configured.
const DefaultGrace = 5 * time.Second

// Options adjust how the supervisor runs a project.
type Options struct {
	// Grace is the TERM-to-KILL budget for shutdown. Zero is honored
	// as "kill immediately"; negative selects DefaultGrace.
	Grace time.Duration
	// Only limits supervision to the named processes.
	Only []string
}

// Supervisor owns the running processes of one project.
type Supervisor struct {
	project *config.Project
	st      *state.DaemonState
	dir     string
	logger  *slog.Logger
	grace   time.Duration
	only    []string

	mu      sync.Mutex
	handles map[string]*proc.Handle
}

// New prepares a supervisor over the given project and state document.
// The state document is mutated and persisted into dir as processes
// change state.
func New(project *config.Project, st *state.DaemonState, dir string, logger *slog.Logger, opts Options) *Supervisor {
	grace := opts.Grace
	if grace < 0 {
		grace = DefaultGrace
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Supervisor{
		project: project,
		st:      st,
		dir:     dir,
		logger:  logger,
		grace:   grace,
		only:    opts.Only,
		handles: make(map[string]*proc.Handle),
	}
}

// StartAll spawns every selected process. A process that fails to
// spawn is recorded as exited and does not stop its siblings.
func (s *Supervisor) StartAll() error {
	specs, err := s.selected()
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		return errors.New("no processes configured")
	}
	if err := fileutil.EnsureDir(state.LogsDir(s.dir)); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}

	// Publish every record as starting in one write so state readers
	// never observe a partial process list.
	s.mu.Lock()
	for _, spec := range specs {
		stdoutPath, stderrPath := s.logPaths(spec)
		s.st.Processes = append(s.st.Processes, state.ProcessRecord{
			Name:       spec.Name,
			Status:     state.StatusStarting,
			StartedAt:  time.Now().UTC(),
			StdoutPath: stdoutPath,
			StderrPath: stderrPath,
		})
	}
	s.persistLocked()
	s.mu.Unlock()

	for _, spec := range specs {
		s.startOne(spec)
	}
	return nil
}

func (s *Supervisor) logPaths(spec config.ProcessSpec) (string, string) {
	stdoutPath, stderrPath := spec.StdoutPath, spec.StderrPath
	defaultOut, defaultErr := state.ProcessLogPaths(s.dir, spec.Name)
	if stdoutPath == "" {
		stdoutPath = defaultOut
	}
	if stderrPath == "" {
		stderrPath = defaultErr
	}
	return stdoutPath, stderrPath
}

func (s *Supervisor) selected() ([]config.ProcessSpec, error) {
	specs := s.project.Processes()
	if len(s.only) == 0 {
		return specs, nil
	}

	want := make(map[string]bool, len(s.only))
	for _, name := range s.only {
		if _, ok := s.project.Process(name); !ok {
			return nil, fmt.Errorf("unknown process %q", name)
		}
		want[name] = true
	}

	var filtered []config.ProcessSpec
	for _, spec := range specs {
		if want[spec.Name] {
			filtered = append(filtered, spec)
		}
	}
	return filtered, nil
}

func (s *Supervisor) startOne(spec config.ProcessSpec) {
	s.mu.Lock()
	record := s.st.Process(spec.Name)
	stdoutPath, stderrPath := record.StdoutPath, record.StderrPath
	s.mu.Unlock()

	dir := spec.Dir
	if dir == "" {
		dir = s.project.Root
	}

	handle, err := proc.Spawn(proc.Spec{
		Name:       spec.Name,
		Command:    spec.Command,
		Dir:        dir,
		Output:     proc.OutputFiles,
		StdoutPath: stdoutPath,
		StderrPath: stderrPath,
	})

	s.mu.Lock()
	record = s.st.Process(spec.Name)
	if err != nil {
		record.Status = state.StatusExited
		s.persistLocked()
		s.mu.Unlock()
		s.logger.Error("process failed to spawn",
			logging.String("process", spec.Name),
			logging.Error(err))
		return
	}

	record.Status = state.StatusRunning
	record.StartedAt = time.Now().UTC()
	record.PID = handle.PID()
	record.PGID = handle.PGID()
	s.handles[spec.Name] = handle
	s.persistLocked()
	s.mu.Unlock()

	s.logger.Info("process started",
		logging.String("process", spec.Name),
		logging.Int("pid", handle.PID()))

	go s.monitor(spec.Name, handle)
}

// monitor reaps one child and records a self-termination. Processes
// that die while we are stopping them are handled by Shutdown instead.
func (s *Supervisor) monitor(name string, handle *proc.Handle) {
	result, err := handle.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	record := s.st.Process(name)
	if record == nil || record.Status != state.StatusRunning {
		return
	}
	record.Status = state.StatusExited
	if err != nil {
		s.persistLocked()
		s.logger.Warn("process reap failed",
			logging.String("process", name),
			logging.Error(err))
		return
	}
	code := result.Code
	record.ExitCode = &code
	s.persistLocked()

	s.logger.Info("process exited",
		logging.String("process", name),
		logging.Int("code", code))
}

// Shutdown runs the stop barrier: SIGTERM every live group, wait out
// the grace period, SIGKILL the survivors, and return only after every
// group has been reaped. A pending grace request in the state
// directory overrides the configured default.
func (s *Supervisor) Shutdown() {
	grace := s.grace
	if requested, ok := state.TakeGrace(s.dir); ok {
		grace = requested
	}

	s.mu.Lock()
	live := make(map[string]*proc.Handle)
	for name, handle := range s.handles {
		record := s.st.Process(name)
		if record != nil && record.Status == state.StatusRunning {
			record.Status = state.StatusStopping
			live[name] = handle
		}
	}
	if len(live) > 0 {
		s.persistLocked()
	}
	s.mu.Unlock()

	if len(live) == 0 {
		s.logger.Info("no live processes to stop")
		return
	}

	s.logger.Info("stopping processes",
		logging.Int("count", len(live)),
		logging.Duration("grace", grace))

	for name, handle := range live {
		if err := handle.Signal(unix.SIGTERM); err != nil {
			s.logger.Warn("signal process group",
				logging.String("process", name),
				logging.Error(err))
		}
	}

	reaped := make(chan string, len(live))
	for name, handle := range live {
		go func(name string, handle *proc.Handle) {
			_, _ = handle.Wait()
			reaped <- name
		}(name, handle)
	}

	remaining := len(live)
	timer := time.NewTimer(grace)
	defer timer.Stop()

	expired := false
	for remaining > 0 && !expired {
		select {
		case name := <-reaped:
			remaining--
			s.markStopped(name, live[name])
		case <-timer.C:
			expired = true
		}
	}

	if remaining > 0 {
		survivors := 0
		s.mu.Lock()
		for name, handle := range live {
			record := s.st.Process(name)
			if record != nil && record.Status == state.StatusStopping {
				_ = handle.Signal(unix.SIGKILL)
				survivors++
			}
		}
		s.mu.Unlock()
		s.logger.Warn("grace period expired, killing survivors",
			logging.Int("count", survivors))

		for remaining > 0 {
			name := <-reaped
			remaining--
			s.markStopped(name, live[name])
		}
	}

	s.logger.Info("all processes stopped")
}

func (s *Supervisor) markStopped(name string, handle *proc.Handle) {
	result, err := handle.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	record := s.st.Process(name)
	if record == nil || record.Status != state.StatusStopping {
		return
	}
	record.Status = state.StatusStopped
	if err == nil {
		code := result.Code
		record.ExitCode = &code
	}
	s.persistLocked()
}

func (s *Supervisor) persistLocked() {
	if err := state.Save(s.dir, s.st); err != nil {
		s.logger.Error("persist state", logging.Error(err))
	}
}
