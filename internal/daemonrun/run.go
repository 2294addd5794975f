// Package daemonrun is the manager process runtime. It takes the
// project lock, spawns the configured processes under a supervisor,
// and parks until the stop signal arrives so exit results stay
// available to status queries.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"

	"drover/internal/config"
	"drover/internal/fileutil"
	"drover/internal/logging"
	"drover/internal/state"
	"drover/internal/supervisor"
)

// ErrLockHeld indicates another manager already supervises the project.
var ErrLockHeld = errors.New("another manager already holds the project lock")

// Options adjust one manager run.
type Options struct {
	// Grace is the TERM-to-KILL budget for shutdown. Negative selects
	// the configured grace period.
	Grace time.Duration
	// LogLevel overrides the configured manager log level.
	LogLevel string
	// Only restricts supervision to the named processes.
	Only []string
}

// Run supervises the project until ctx is cancelled. It returns after
// every supervised process has been stopped and the published state
// removed.
func Run(ctx context.Context, project *config.Project, opts Options) error {
	dir, err := state.Dir(project.Root)
	if err != nil {
		return err
	}
	if err := fileutil.EnsureDir(dir); err != nil {
		return err
	}

	lock := flock.New(state.LockPath(dir))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire manager lock: %w", err)
	}
	if !locked {
		return ErrLockHeld
	}
	defer func() { _ = lock.Unlock() }()

	level := opts.LogLevel
	if level == "" {
		level = project.Settings.LogLevel
	}
	logger, err := logging.New(logging.Options{Level: level, Output: os.Stdout})
	if err != nil {
		return err
	}

	grace := opts.Grace
	if grace < 0 {
		grace = time.Duration(project.Settings.GraceSeconds) * time.Second
	}

	if err := state.WritePID(dir, os.Getpid()); err != nil {
		return fmt.Errorf("write manager pid: %w", err)
	}

	st := state.New(project.Root)
	sup := supervisor.New(project, st, dir, logger, supervisor.Options{
		Grace: grace,
		Only:  opts.Only,
	})

	logger.Info("manager starting",
		logging.String("root", project.Root),
		logging.Int("pid", os.Getpid()),
		logging.String("run_id", st.ManagerRunID))

	if err := sup.StartAll(); err != nil {
		logger.Error("startup failed", logging.Error(err))
		_ = state.Remove(dir)
		return err
	}

	// Park until signalled. Even when every process has exited on its
	// own the manager stays up so exit codes remain queryable.
	<-ctx.Done()

	logger.Info("manager stopping")
	sup.Shutdown()
	if err := state.Remove(dir); err != nil {
		logger.Warn("state cleanup failed", logging.Error(err))
	}
	logger.Info("manager stopped")
	return nil
}
