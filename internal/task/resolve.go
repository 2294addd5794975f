package task

import (
	"fmt"
	"sort"
	"strings"

	"drover/internal/config"
)

// NotFoundError reports a task name that resolves to nothing, with
// near-miss candidates for the error message.
type NotFoundError struct {
	Name       string
	Candidates []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("task %q not found", config.DisplayTaskName(e.Name))
	if len(e.Candidates) > 0 {
		display := make([]string, len(e.Candidates))
		for i, candidate := range e.Candidates {
			display[i] = config.DisplayTaskName(candidate)
		}
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(display, ", "))
	}
	return msg
}

// CycleError reports a group that expands back into itself. Path is
// the expansion chain ending on the repeated name.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	display := make([]string, len(e.Path))
	for i, name := range e.Path {
		display[i] = config.DisplayTaskName(name)
	}
	return "task cycle: " + strings.Join(display, " -> ")
}

// Node is one step of a resolved task plan.
type Node struct {
	Name      string
	Kind      config.TaskKind
	Command   string
	Dir       string
	Processes []string
	Children  []*Node
	Parallel  bool
}

// Resolve expands name against the project's task namespace. Group
// children are expanded transitively, so the returned plan is complete
// and both unknown names and cycles surface here, before any
// execution.
func Resolve(project *config.Project, name string) (*Node, error) {
	return resolveTask(project, config.NormalizeTaskName(name), nil)
}

// ChildName maps a group child reference onto its full task name:
// bare fragments nest under the parent, qualified names are absolute.
func ChildName(parent, child string) string {
	normalized := config.NormalizeTaskName(child)
	if strings.Contains(normalized, ".") {
		return normalized
	}
	return parent + "." + normalized
}

func resolveTask(project *config.Project, name string, chain []string) (*Node, error) {
	for _, ancestor := range chain {
		if ancestor == name {
			path := append(append([]string(nil), chain...), name)
			return nil, &CycleError{Path: path}
		}
	}

	spec, ok := project.Task(name)
	if !ok {
		return nil, &NotFoundError{Name: name, Candidates: candidatesFor(project, name)}
	}

	node := &Node{Name: name, Kind: spec.Kind}
	switch spec.Kind {
	case config.TaskLeaf:
		node.Command = spec.Command
		node.Dir = spec.Dir
	case config.TaskProcesses:
		node.Processes = spec.Processes
	case config.TaskGroup:
		node.Parallel = spec.Parallel
		childChain := append(append([]string(nil), chain...), name)
		for _, child := range spec.Children {
			resolved, err := resolveTask(project, ChildName(name, child), childChain)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, resolved)
		}
	}
	return node, nil
}

// candidatesFor suggests defined tasks that share a fragment with the
// requested name, for "did you mean" reporting.
func candidatesFor(project *config.Project, name string) []string {
	last := name
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		last = name[idx+1:]
	}

	var candidates []string
	for _, defined := range project.TaskNames() {
		if defined == name {
			continue
		}
		for _, fragment := range strings.Split(defined, ".") {
			if fragment == last || fragment == name {
				candidates = append(candidates, defined)
				break
			}
		}
	}
	sort.Strings(candidates)
	if len(candidates) > 5 {
		candidates = candidates[:5]
	}
	return candidates
}
