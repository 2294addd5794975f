package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"drover/internal/config"
	"drover/internal/logmux"
	"drover/internal/proc"
)

// ExitError carries a failing task's exit code so the CLI can use it
// as its own.
type ExitError struct {
	Task string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("task %s exited with code %d", config.DisplayTaskName(e.Task), e.Code)
}

// Runner executes resolved task plans against a project.
type Runner struct {
	project *config.Project
	printer *logmux.Printer
	grace   time.Duration
}

// NewRunner builds a runner that renders multiplexed output through
// printer. A negative grace selects the project's configured default.
func NewRunner(project *config.Project, printer *logmux.Printer, grace time.Duration) *Runner {
	if grace < 0 {
		grace = time.Duration(project.Settings.GraceSeconds) * time.Second
	}
	return &Runner{project: project, printer: printer, grace: grace}
}

// Run resolves name and executes its plan. Extra args are appended to
// every leaf command and every process command the plan reaches.
func (r *Runner) Run(ctx context.Context, name string, extraArgs []string) error {
	node, err := Resolve(r.project, name)
	if err != nil {
		return err
	}
	return r.runNode(ctx, node, extraArgs, false)
}

// RunProcesses brings up the named long-running processes (all of them
// when names is empty) in the foreground, multiplexing their output
// until ctx is cancelled or every process has exited.
func (r *Runner) RunProcesses(ctx context.Context, names []string, extraArgs []string) error {
	specs, err := r.processSpecs(names)
	if err != nil {
		return err
	}
	return r.runProcessSet(ctx, specs, extraArgs)
}

func (r *Runner) processSpecs(names []string) ([]config.ProcessSpec, error) {
	if len(names) == 0 {
		specs := r.project.Processes()
		if len(specs) == 0 {
			return nil, fmt.Errorf("no processes configured")
		}
		return specs, nil
	}
	specs := make([]config.ProcessSpec, 0, len(names))
	for _, name := range names {
		spec, ok := r.project.Process(name)
		if !ok {
			return nil, fmt.Errorf("unknown process %q", name)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// muxed marks execution inside a parallel group, where leaf output is
// labeled and multiplexed instead of inheriting the terminal.
func (r *Runner) runNode(ctx context.Context, node *Node, args []string, muxed bool) error {
	switch node.Kind {
	case config.TaskLeaf:
		return r.runLeaf(ctx, node, args, muxed)
	case config.TaskProcesses:
		specs, err := r.processSpecs(node.Processes)
		if err != nil {
			return err
		}
		return r.runProcessSet(ctx, specs, args)
	case config.TaskGroup:
		if node.Parallel {
			return r.runParallel(ctx, node, args)
		}
		return r.runSequential(ctx, node, args, muxed)
	default:
		return fmt.Errorf("task %s has unknown kind", config.DisplayTaskName(node.Name))
	}
}

func (r *Runner) runSequential(ctx context.Context, node *Node, args []string, muxed bool) error {
	for _, child := range node.Children {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.runNode(ctx, child, args, muxed); err != nil {
			return err
		}
	}
	return nil
}

// runParallel starts every child at once and always lets all of them
// finish: a failing child never cancels its siblings. The first
// failure in child order becomes the group result.
func (r *Runner) runParallel(ctx context.Context, node *Node, args []string) error {
	var wg sync.WaitGroup
	errs := make([]error, len(node.Children))
	for i, child := range node.Children {
		wg.Add(1)
		go func(i int, child *Node) {
			defer wg.Done()
			errs[i] = r.runNode(ctx, child, args, true)
		}(i, child)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runLeaf(ctx context.Context, node *Node, args []string, muxed bool) error {
	output := proc.OutputInherit
	if muxed {
		output = proc.OutputPipe
	}

	handle, err := proc.Spawn(proc.Spec{
		Name:    node.Name,
		Command: node.Command,
		Dir:     r.workDir(node.Dir),
		Args:    args,
		Output:  output,
	})
	if err != nil {
		return err
	}

	var muxDone chan error
	if muxed {
		label := config.DisplayTaskName(node.Name)
		mux := logmux.New(r.printer)
		mux.Add(label, handle.Stdout)
		mux.AddStderr(label, handle.Stderr)
		muxDone = make(chan error, 1)
		go func() { muxDone <- mux.Run(context.Background()) }()
	}

	result, err := r.waitInterruptible(ctx, handle)
	if muxDone != nil {
		<-muxDone
	}
	if err != nil {
		return err
	}
	if result.Code != 0 {
		return &ExitError{Task: node.Name, Code: result.Code}
	}
	return nil
}

// runProcessSet is the shared foreground path for dev mode and process
// reference tasks: all processes up, labeled output, teardown on
// interrupt, and a normal return once every process has exited on its
// own.
func (r *Runner) runProcessSet(ctx context.Context, specs []config.ProcessSpec, args []string) error {
	mux := logmux.New(r.printer)
	handles := make([]*proc.Handle, 0, len(specs))

	for _, spec := range specs {
		dir := spec.Dir
		if dir == "" {
			dir = r.project.Root
		}
		handle, err := proc.Spawn(proc.Spec{
			Name:    spec.Name,
			Command: spec.Command,
			Dir:     dir,
			Args:    args,
			Output:  proc.OutputPipe,
		})
		if err != nil {
			r.stopAll(handles)
			return err
		}
		mux.Add(spec.Name, handle.Stdout)
		mux.AddStderr(spec.Name, handle.Stderr)
		handles = append(handles, handle)
		r.printer.Print(spec.Name, false, fmt.Sprintf("started (pid %d)", handle.PID()))
	}

	// The mux runs on its own context so teardown output still drains
	// after an interrupt.
	muxDone := make(chan error, 1)
	go func() { muxDone <- mux.Run(context.Background()) }()

	select {
	case <-muxDone:
		for _, handle := range handles {
			_, _ = handle.Wait()
		}
		return nil
	case <-ctx.Done():
		r.stopAll(handles)
		<-muxDone
		return ctx.Err()
	}
}

// stopAll is the foreground shutdown barrier: TERM every group, share
// one grace budget, KILL the survivors, and return only after every
// process is reaped.
func (r *Runner) stopAll(handles []*proc.Handle) {
	if len(handles) == 0 {
		return
	}
	for _, handle := range handles {
		_ = handle.Signal(unix.SIGTERM)
		// Reap in the background so Done() closes as children die.
		go func(h *proc.Handle) { _, _ = h.Wait() }(handle)
	}

	timer := time.NewTimer(r.grace)
	defer timer.Stop()

	for _, handle := range handles {
		select {
		case <-handle.Done():
		case <-timer.C:
			for _, survivor := range handles {
				select {
				case <-survivor.Done():
				default:
					_ = survivor.Signal(unix.SIGKILL)
				}
			}
			for _, survivor := range handles {
				_, _ = survivor.Wait()
			}
			return
		}
	}
}

func (r *Runner) waitInterruptible(ctx context.Context, handle *proc.Handle) (proc.Result, error) {
	go func() { _, _ = handle.Wait() }()

	select {
	case <-handle.Done():
		return handle.Wait()
	case <-ctx.Done():
	}

	_ = handle.Signal(unix.SIGTERM)
	timer := time.NewTimer(r.grace)
	defer timer.Stop()
	select {
	case <-handle.Done():
	case <-timer.C:
		_ = handle.Signal(unix.SIGKILL)
		<-handle.Done()
	}
	return proc.Result{}, ctx.Err()
}

func (r *Runner) workDir(dir string) string {
	if dir == "" {
		return r.project.Root
	}
	return dir
}
