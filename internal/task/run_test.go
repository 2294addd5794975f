package task_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"drover/internal/logmux"
	"drover/internal/proc"
	"drover/internal/task"
	"drover/internal/testsupport"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newRunner(t *testing.T, content string) (*task.Runner, *syncBuffer, string) {
	t.Helper()
	project := testsupport.WriteProject(t, content)
	out := &syncBuffer{}
	runner := task.NewRunner(project, logmux.NewPrinter(out, false), 2*time.Second)
	return runner, out, project.Root
}

func TestRunLeafSuccess(t *testing.T) {
	t.Parallel()

	runner, _, root := newRunner(t, `
[tasks.mark]
cmd = "touch mark.ran"
`)
	if err := runner.Run(context.Background(), "mark", nil); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "mark.ran")); err != nil {
		t.Fatalf("task did not run in project root: %v", err)
	}
}

func TestRunLeafExitCode(t *testing.T) {
	t.Parallel()

	runner, _, _ := newRunner(t, `
[tasks]
broken = "exit 7"
`)
	err := runner.Run(context.Background(), "broken", nil)
	var exitErr *task.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.Code != 7 || exitErr.Task != "broken" {
		t.Fatalf("unexpected exit error: %+v", exitErr)
	}
}

func TestRunForwardsExtraArgs(t *testing.T) {
	t.Parallel()

	runner, _, root := newRunner(t, `
[tasks.echoargs]
cmd = "printf '%s\n' \"$@\" > args.txt"
`)
	if err := runner.Run(context.Background(), "echoargs", []string{"a b", "c"}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "args.txt"))
	if err != nil {
		t.Fatalf("reading args file: %v", err)
	}
	if string(data) != "a b\nc\n" {
		t.Fatalf("argument boundaries lost: %q", string(data))
	}
}

func TestRunSequentialStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	runner, _, root := newRunner(t, `
[tasks.ship]
group = ["one", "two"]

[tasks."ship.one"]
cmd = "touch one.ran; exit 3"

[tasks."ship.two"]
cmd = "touch two.ran"
`)
	err := runner.Run(context.Background(), "ship", nil)
	var exitErr *task.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.Task != "ship.one" || exitErr.Code != 3 {
		t.Fatalf("unexpected exit error: %+v", exitErr)
	}
	if _, err := os.Stat(filepath.Join(root, "one.ran")); err != nil {
		t.Fatalf("first child should have run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "two.ran")); !os.IsNotExist(err) {
		t.Fatalf("second child should not have run after failure, stat: %v", err)
	}
}

func TestRunParallelRunsAllChildren(t *testing.T) {
	t.Parallel()

	runner, _, root := newRunner(t, `
[tasks.all]
parallel = true
group = ["a", "b"]

[tasks."all.a"]
cmd = "touch a.ran; exit 2"

[tasks."all.b"]
cmd = "sleep 0.2; touch b.ran"
`)
	err := runner.Run(context.Background(), "all", nil)
	var exitErr *task.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.Task != "all.a" || exitErr.Code != 2 {
		t.Fatalf("unexpected exit error: %+v", exitErr)
	}
	for _, marker := range []string{"a.ran", "b.ran"} {
		if _, err := os.Stat(filepath.Join(root, marker)); err != nil {
			t.Fatalf("parallel sibling %s should have completed: %v", marker, err)
		}
	}
}

func TestRunParallelLabelsOutput(t *testing.T) {
	t.Parallel()

	runner, out, _ := newRunner(t, `
[tasks.say]
parallel = true
group = ["a", "b"]

[tasks."say.a"]
cmd = "echo from-a"

[tasks."say.b"]
cmd = "echo from-b"
`)
	if err := runner.Run(context.Background(), "say", nil); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "[say:a] from-a") {
		t.Fatalf("missing labeled output for say:a: %q", text)
	}
	if !strings.Contains(text, "[say:b] from-b") {
		t.Fatalf("missing labeled output for say:b: %q", text)
	}
}

func TestRunLeafInterrupted(t *testing.T) {
	t.Parallel()

	runner, _, root := newRunner(t, `
[tasks.wait]
cmd = "echo $$ > pid.txt; exec sleep 30"
`)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runner.Run(ctx, "wait", nil)
	}()

	pid := waitForPIDFile(t, filepath.Join(root, "pid.txt"))
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	testsupport.WaitFor(t, 5*time.Second, func() bool {
		return !proc.Alive(pid)
	}, "task process %d still alive after cancellation", pid)
}

func TestRunUnknownTask(t *testing.T) {
	t.Parallel()

	runner, _, _ := newRunner(t, `
[tasks]
fmt = "true"
`)
	err := runner.Run(context.Background(), "missing", nil)
	var notFound *task.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestRunProcessRefTask(t *testing.T) {
	t.Parallel()

	runner, out, _ := newRunner(t, `
[processes]
web = "echo hi"

[tasks.backend]
processes = ["web"]
`)
	if err := runner.Run(context.Background(), "backend", nil); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "started (pid") {
		t.Fatalf("missing start announcement: %q", text)
	}
	if !strings.Contains(text, "[web] hi") {
		t.Fatalf("missing process output: %q", text)
	}
}

func TestRunProcessesAllExitClean(t *testing.T) {
	t.Parallel()

	runner, out, _ := newRunner(t, `
[processes]
web = "echo out; echo err >&2"
`)
	if err := runner.RunProcesses(context.Background(), nil, nil); err != nil {
		t.Fatalf("RunProcesses returned error: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "[web] out") {
		t.Fatalf("missing stdout line: %q", text)
	}
	if !strings.Contains(text, "[web!] err") {
		t.Fatalf("missing stderr line: %q", text)
	}
}

func TestRunProcessesSubset(t *testing.T) {
	t.Parallel()

	runner, out, _ := newRunner(t, `
[processes]
web = "echo from-web"
api = "echo from-api"
`)
	if err := runner.RunProcesses(context.Background(), []string{"api"}, nil); err != nil {
		t.Fatalf("RunProcesses returned error: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "[api] from-api") {
		t.Fatalf("missing selected process output: %q", text)
	}
	if strings.Contains(text, "from-web") {
		t.Fatalf("unselected process ran: %q", text)
	}
}

func TestRunProcessesUnknownName(t *testing.T) {
	t.Parallel()

	runner, _, _ := newRunner(t, `
[processes]
web = "true"
`)
	err := runner.RunProcesses(context.Background(), []string{"nope"}, nil)
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("expected unknown process error, got %v", err)
	}
}

func TestRunProcessesTeardownOnCancel(t *testing.T) {
	t.Parallel()

	runner, _, root := newRunner(t, `
[processes]
web = "echo $$ > pid.txt; exec sleep 30"
`)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runner.RunProcesses(ctx, nil, nil)
	}()

	pid := waitForPIDFile(t, filepath.Join(root, "pid.txt"))
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunProcesses did not return after cancellation")
	}
	testsupport.WaitFor(t, 5*time.Second, func() bool {
		return !proc.Alive(pid)
	}, "process %d still alive after teardown", pid)
}

func waitForPIDFile(t *testing.T, path string) int {
	t.Helper()
	var pid int
	testsupport.WaitFor(t, 5*time.Second, func() bool {
		data, err := os.ReadFile(path)
		if err != nil {
			return false
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil || parsed <= 0 {
			return false
		}
		pid = parsed
		return true
	}, "pid file %s never appeared", path)
	return pid
}
