package daemonctl_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"drover/internal/daemonctl"
	"drover/internal/proc"
	"drover/internal/state"
	"drover/internal/testsupport"
)

// writeScript installs an executable stand-in for the manager binary.
func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "droverd")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+content), 0o755); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}

// fakeManagerScript produces a script that publishes a plausible
// state.json naming its own PID, then parks like the real manager.
func fakeManagerScript(t *testing.T, dir string) string {
	t.Helper()
	stateJSON := `{"version":1,"project_root":"/tmp/p","project_id":"abc123","manager_pid":$$,` +
		`"manager_run_id":"run-1","started_at":"2026-08-23T10:00:00Z",` +
		`"processes":[{"name":"web","pid":$$,"pgid":$$,"status":"running",` +
		`"started_at":"2026-08-23T10:00:00Z","stdout_path":"","stderr_path":""}]}`
	return writeScript(t, fmt.Sprintf(`cat > %q <<EOF
%s
EOF
exec sleep 30
`, state.StatePath(dir), stateJSON))
}

func saveState(t *testing.T, dir string, st *state.DaemonState) {
	t.Helper()
	if err := state.Save(dir, st); err != nil {
		t.Fatalf("saving state: %v", err)
	}
}

func TestCurrentNotRunning(t *testing.T) {
	t.Parallel()

	_, err := daemonctl.Current(t.TempDir())
	if !errors.Is(err, daemonctl.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestCurrentCleansStaleState(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st := state.New("/tmp/project")
	st.ManagerPID = 999999999
	saveState(t, dir, st)

	_, err := daemonctl.Current(dir)
	if !errors.Is(err, daemonctl.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if _, err := os.Stat(state.StatePath(dir)); !os.IsNotExist(err) {
		t.Fatalf("stale state.json should be removed, stat: %v", err)
	}
}

func TestCurrentReturnsLiveState(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st := state.New("/tmp/project")
	saveState(t, dir, st)

	got, err := daemonctl.Current(dir)
	if err != nil {
		t.Fatalf("Current returned error: %v", err)
	}
	if got.ManagerPID != os.Getpid() {
		t.Fatalf("unexpected manager pid %d", got.ManagerPID)
	}
}

func TestLaunchForwardsFlags(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	root := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	script := writeScript(t, fmt.Sprintf("echo launched\nprintf '%%s\\n' \"$@\" > %q\n", argsFile))

	err := daemonctl.Launch(dir, daemonctl.LaunchOptions{
		Root:         root,
		Binary:       script,
		GraceSeconds: 7,
		LogLevel:     "debug",
		Only:         []string{"web", "api"},
	})
	if err != nil {
		t.Fatalf("Launch returned error: %v", err)
	}

	var args string
	testsupport.WaitFor(t, 5*time.Second, func() bool {
		data, err := os.ReadFile(argsFile)
		if err != nil {
			return false
		}
		args = string(data)
		return true
	}, "launched script never wrote args")

	want := fmt.Sprintf("--root\n%s\n--grace\n7\n--log-level\ndebug\n--only\nweb\n--only\napi\n", root)
	if args != want {
		t.Fatalf("forwarded args:\n%q\nwant:\n%q", args, want)
	}

	testsupport.WaitFor(t, 5*time.Second, func() bool {
		data, err := os.ReadFile(state.ManagerLogPath(dir))
		return err == nil && strings.Contains(string(data), "launched")
	}, "manager.log did not capture script output")
}

func TestLaunchOmitsUnsetFlags(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	root := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	script := writeScript(t, fmt.Sprintf("printf '%%s\\n' \"$@\" > %q\n", argsFile))

	err := daemonctl.Launch(dir, daemonctl.LaunchOptions{
		Root:         root,
		Binary:       script,
		GraceSeconds: -1,
	})
	if err != nil {
		t.Fatalf("Launch returned error: %v", err)
	}

	var args string
	testsupport.WaitFor(t, 5*time.Second, func() bool {
		data, err := os.ReadFile(argsFile)
		if err != nil {
			return false
		}
		args = string(data)
		return true
	}, "launched script never wrote args")
	if args != fmt.Sprintf("--root\n%s\n", root) {
		t.Fatalf("unexpected args: %q", args)
	}
}

func TestLaunchRequiresRoot(t *testing.T) {
	t.Parallel()

	err := daemonctl.Launch(t.TempDir(), daemonctl.LaunchOptions{Binary: "/bin/true"})
	if err == nil || !strings.Contains(err.Error(), "project root") {
		t.Fatalf("expected root error, got %v", err)
	}
}

func TestWaitForStateTimesOut(t *testing.T) {
	t.Parallel()

	_, err := daemonctl.WaitForState(t.TempDir(), 300*time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), state.ManagerLogName) {
		t.Fatalf("expected timeout pointing at manager log, got %v", err)
	}
}

func TestWaitForStateWaitsForStartupToSettle(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st := state.New("/tmp/project")
	st.Processes = append(st.Processes, state.ProcessRecord{Name: "web", Status: state.StatusStarting})
	saveState(t, dir, st)

	done := make(chan error, 1)
	go func() {
		_, err := daemonctl.WaitForState(dir, 5*time.Second)
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("WaitForState returned before startup settled: %v", err)
	case <-time.After(400 * time.Millisecond):
	}

	st.Processes[0].Status = state.StatusRunning
	saveState(t, dir, st)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitForState returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForState did not return after state settled")
	}
}

func TestStartReportsAlreadyRunning(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	marker := filepath.Join(dir, "launched.marker")
	script := writeScript(t, fmt.Sprintf("touch %q\n", marker))

	st := state.New("/tmp/project")
	st.Processes = append(st.Processes, state.ProcessRecord{Name: "web", Status: state.StatusRunning})
	saveState(t, dir, st)

	result, err := daemonctl.Start(dir, daemonctl.LaunchOptions{Root: "/tmp/project", Binary: script, GraceSeconds: -1}, time.Second)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if !result.AlreadyRunning {
		t.Fatal("expected AlreadyRunning")
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Fatalf("manager should not have been launched, stat: %v", err)
	}
}

func TestStartLaunchesAndWaits(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := fakeManagerScript(t, dir)

	result, err := daemonctl.Start(dir, daemonctl.LaunchOptions{Root: t.TempDir(), Binary: script, GraceSeconds: -1}, 10*time.Second)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if result.AlreadyRunning {
		t.Fatal("fresh start reported AlreadyRunning")
	}
	if result.State == nil || len(result.State.Processes) != 1 {
		t.Fatalf("unexpected state: %+v", result.State)
	}
	if !proc.Alive(result.State.ManagerPID) {
		t.Fatalf("manager %d should be alive", result.State.ManagerPID)
	}
	t.Cleanup(func() {
		_ = proc.SignalPID(result.State.ManagerPID, syscall.SIGKILL)
	})
}

func TestStopAndWaitNotRunning(t *testing.T) {
	t.Parallel()

	_, err := daemonctl.StopAndWait(t.TempDir(), time.Second)
	if !errors.Is(err, daemonctl.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestStopAndWaitStopsManager(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	manager, err := proc.Spawn(proc.Spec{Name: "manager", Command: "sleep 30", Output: proc.OutputPipe})
	if err != nil {
		t.Fatalf("spawning stand-in manager: %v", err)
	}
	go func() { _, _ = manager.Wait() }()

	st := state.New("/tmp/project")
	st.ManagerPID = manager.PID()
	st.Processes = append(st.Processes, state.ProcessRecord{Name: "web", PID: manager.PID(), PGID: manager.PGID(), Status: state.StatusRunning})
	saveState(t, dir, st)

	result, err := daemonctl.StopAndWait(dir, 5*time.Second)
	if err != nil {
		t.Fatalf("StopAndWait returned error: %v", err)
	}
	if result.PID != manager.PID() || result.ForcedKill {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Stopped) != 1 || result.Stopped[0] != "web" {
		t.Fatalf("unexpected stopped list: %v", result.Stopped)
	}
	if proc.Alive(manager.PID()) {
		t.Fatalf("manager %d still alive", manager.PID())
	}
	if _, err := os.Stat(state.StatePath(dir)); !os.IsNotExist(err) {
		t.Fatalf("state.json should be cleaned up, stat: %v", err)
	}
	if _, err := os.Stat(state.GracePath(dir)); !os.IsNotExist(err) {
		t.Fatalf("grace file should be cleaned up, stat: %v", err)
	}
}

func TestStopAndWaitForceKillsStubbornManager(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	manager, err := proc.Spawn(proc.Spec{Name: "manager", Command: "trap '' TERM; sleep 100", Output: proc.OutputPipe})
	if err != nil {
		t.Fatalf("spawning stand-in manager: %v", err)
	}
	go func() { _, _ = manager.Wait() }()

	orphan, err := proc.Spawn(proc.Spec{Name: "web", Command: "sleep 100", Output: proc.OutputPipe})
	if err != nil {
		t.Fatalf("spawning recorded process: %v", err)
	}
	go func() { _, _ = orphan.Wait() }()

	st := state.New("/tmp/project")
	st.ManagerPID = manager.PID()
	st.Processes = append(st.Processes, state.ProcessRecord{Name: "web", PID: orphan.PID(), PGID: orphan.PGID(), Status: state.StatusRunning})
	saveState(t, dir, st)

	result, err := daemonctl.StopAndWait(dir, 0)
	if err != nil {
		t.Fatalf("StopAndWait returned error: %v", err)
	}
	if !result.ForcedKill {
		t.Fatal("expected ForcedKill")
	}
	testsupport.WaitFor(t, 5*time.Second, func() bool {
		return !proc.Alive(manager.PID()) && !proc.Alive(orphan.PID())
	}, "stand-in manager or recorded process survived force kill")
}

func TestRestartWhenNotRunning(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := fakeManagerScript(t, dir)

	result, err := daemonctl.Restart(dir, time.Second, daemonctl.LaunchOptions{Root: t.TempDir(), Binary: script, GraceSeconds: -1}, 10*time.Second)
	if err != nil {
		t.Fatalf("Restart returned error: %v", err)
	}
	if result.WasRunning {
		t.Fatal("nothing was running before restart")
	}
	if result.State == nil || !proc.Alive(result.State.ManagerPID) {
		t.Fatalf("restarted manager not alive: %+v", result.State)
	}
	t.Cleanup(func() {
		_ = proc.SignalPID(result.State.ManagerPID, syscall.SIGKILL)
	})
}
