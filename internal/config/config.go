package config

import (
	"sort"
	"strings"
)

// Format identifies which configuration source a project was loaded from.
type Format string

const (
	FormatTOML     Format = "toml"
	FormatProcfile Format = "procfile"
)

// ProcessSpec describes one long-running managed process. Paths are absolute
// after loading; empty StdoutPath/StderrPath means the default log location
// under the project's state directory applies.
type ProcessSpec struct {
	Name       string
	Command    string
	Dir        string
	StdoutPath string
	StderrPath string
}

// TaskKind discriminates the task variants.
type TaskKind int

const (
	// TaskLeaf runs a single shell command to completion.
	TaskLeaf TaskKind = iota
	// TaskProcesses runs configured processes in the foreground.
	TaskProcesses
	// TaskGroup runs child tasks sequentially or in parallel.
	TaskGroup
)

func (k TaskKind) String() string {
	switch k {
	case TaskLeaf:
		return "command"
	case TaskProcesses:
		return "processes"
	case TaskGroup:
		return "group"
	default:
		return "unknown"
	}
}

// TaskSpec describes one named task. Name is the canonical dotted form.
// Exactly one variant body is populated, indicated by Kind.
type TaskSpec struct {
	Name string
	Kind TaskKind

	// TaskLeaf
	Command string
	Dir     string

	// TaskProcesses
	Processes []string

	// TaskGroup. Children are name fragments resolved relative to this
	// task's namespace unless they contain a separator.
	Children []string
	Parallel bool
}

// Settings carries daemon defaults from the [settings] section.
type Settings struct {
	GraceSeconds int    `toml:"grace_seconds"`
	LogLevel     string `toml:"log_level"`
}

// Project is a fully loaded and validated configuration.
type Project struct {
	// Root is the canonicalized absolute project root.
	Root string
	// Source is the config file the project was loaded from.
	Source string
	Format Format

	Settings Settings

	processes map[string]ProcessSpec
	order     []string
	tasks     map[string]TaskSpec
}

// Process looks up a process definition by name.
func (p *Project) Process(name string) (ProcessSpec, bool) {
	spec, ok := p.processes[name]
	return spec, ok
}

// Processes returns all process definitions in stable name order.
func (p *Project) Processes() []ProcessSpec {
	specs := make([]ProcessSpec, 0, len(p.order))
	for _, name := range p.order {
		specs = append(specs, p.processes[name])
	}
	return specs
}

// ProcessNames returns process names in stable order.
func (p *Project) ProcessNames() []string {
	return append([]string(nil), p.order...)
}

// Task looks up a task by name, accepting either separator style.
func (p *Project) Task(name string) (TaskSpec, bool) {
	spec, ok := p.tasks[NormalizeTaskName(name)]
	return spec, ok
}

// Tasks returns all tasks keyed by canonical name.
func (p *Project) Tasks() map[string]TaskSpec {
	out := make(map[string]TaskSpec, len(p.tasks))
	for name, spec := range p.tasks {
		out[name] = spec
	}
	return out
}

// TaskNames returns canonical task names sorted lexically.
func (p *Project) TaskNames() []string {
	names := make([]string, 0, len(p.tasks))
	for name := range p.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NormalizeTaskName converts a task name to its canonical dotted form.
// Both "build:frontend" and "build.frontend" normalize to "build.frontend".
func NormalizeTaskName(name string) string {
	return strings.TrimSpace(strings.ReplaceAll(name, ":", "."))
}

// DisplayTaskName renders a canonical task name with colon separators for
// user-facing output.
func DisplayTaskName(name string) string {
	return strings.ReplaceAll(name, ".", ":")
}
