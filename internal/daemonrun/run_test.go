package daemonrun_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"drover/internal/config"
	"drover/internal/daemonrun"
	"drover/internal/proc"
	"drover/internal/state"
	"drover/internal/testsupport"
)

func stateDir(t *testing.T, project *config.Project) string {
	t.Helper()
	dir, err := state.Dir(project.Root)
	if err != nil {
		t.Fatalf("resolving state dir: %v", err)
	}
	return dir
}

func TestRunSupervisesUntilCancelled(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	project := testsupport.WriteProject(t, `
[processes]
web = "sleep 30"
`)
	dir := stateDir(t, project)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- daemonrun.Run(ctx, project, daemonrun.Options{Grace: 2 * time.Second})
	}()

	var st *state.DaemonState
	testsupport.WaitFor(t, 5*time.Second, func() bool {
		st = state.Load(dir)
		return st != nil && st.Process("web") != nil && st.Process("web").Status == state.StatusRunning
	}, "manager never published running state")

	if st.ManagerPID != os.Getpid() {
		t.Fatalf("manager pid %d, want test process %d", st.ManagerPID, os.Getpid())
	}
	if _, err := os.Stat(state.PIDPath(dir)); err != nil {
		t.Fatalf("manager.pid missing: %v", err)
	}
	pid := st.Process("web").PID
	if !proc.Alive(pid) {
		t.Fatalf("supervised process %d not alive", pid)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if proc.Alive(pid) {
		t.Fatalf("supervised process %d survived shutdown", pid)
	}
	if _, err := os.Stat(state.StatePath(dir)); !os.IsNotExist(err) {
		t.Fatalf("state.json should be removed after clean exit, stat: %v", err)
	}
	if _, err := os.Stat(state.PIDPath(dir)); !os.IsNotExist(err) {
		t.Fatalf("manager.pid should be removed after clean exit, stat: %v", err)
	}
}

func TestRunRejectsSecondManager(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	project := testsupport.WriteProject(t, `
[processes]
web = "sleep 30"
`)
	dir := stateDir(t, project)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- daemonrun.Run(ctx, project, daemonrun.Options{Grace: 2 * time.Second})
	}()
	testsupport.WaitFor(t, 5*time.Second, func() bool {
		return state.Load(dir) != nil
	}, "first manager never published state")

	err := daemonrun.Run(context.Background(), project, daemonrun.Options{Grace: 2 * time.Second})
	if !errors.Is(err, daemonrun.ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("first Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("first Run did not return after cancellation")
	}
}

func TestRunWithoutProcessesFailsFast(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	project := testsupport.WriteProject(t, `
[tasks]
fmt = "true"
`)
	dir := stateDir(t, project)

	err := daemonrun.Run(context.Background(), project, daemonrun.Options{Grace: time.Second})
	if err == nil || !strings.Contains(err.Error(), "no processes configured") {
		t.Fatalf("expected no-processes error, got %v", err)
	}
	if _, err := os.Stat(state.PIDPath(dir)); !os.IsNotExist(err) {
		t.Fatalf("manager.pid should be cleaned up after failed start, stat: %v", err)
	}
}
