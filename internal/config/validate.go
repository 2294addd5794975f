package config

import (
	"fmt"
	"sort"
	"strings"
)

// ValidateError reports every configuration problem found in one pass.
type ValidateError struct {
	Problems []string
}

func (e *ValidateError) Error() string {
	switch len(e.Problems) {
	case 0:
		return "invalid configuration"
	case 1:
		return "invalid configuration: " + e.Problems[0]
	default:
		return fmt.Sprintf("invalid configuration (%d problems): %s",
			len(e.Problems), strings.Join(e.Problems, "; "))
	}
}

type problemList struct {
	problems []string
}

func (l *problemList) addf(format string, args ...any) {
	l.problems = append(l.problems, fmt.Sprintf(format, args...))
}

func (l *problemList) err() error {
	if len(l.problems) == 0 {
		return nil
	}
	sort.Strings(l.problems)
	return &ValidateError{Problems: l.problems}
}

// validate checks semantic rules after normalization. Dangling group children
// and cycles are the task resolver's concern; everything checkable from the
// flat definitions is caught here.
func (p *Project) validate(problems *problemList) {
	if len(p.processes) == 0 && len(p.tasks) == 0 {
		problems.addf("configuration defines no processes or tasks")
	}

	for _, name := range p.order {
		spec := p.processes[name]
		if bad := checkName(spec.Name); bad != "" {
			problems.addf("processes.%s: %s", spec.Name, bad)
			continue
		}
		if spec.Command == "" {
			problems.addf("processes.%s: cmd must not be empty", spec.Name)
		}
	}

	for name, spec := range p.tasks {
		fragments := strings.Split(name, ".")
		for _, fragment := range fragments {
			if bad := checkName(fragment); bad != "" {
				problems.addf("tasks.%s: %s", DisplayTaskName(name), bad)
				break
			}
		}

		switch spec.Kind {
		case TaskLeaf:
			if spec.Command == "" {
				problems.addf("tasks.%s: cmd must not be empty", DisplayTaskName(name))
			}
		case TaskProcesses:
			if len(spec.Processes) == 0 {
				problems.addf("tasks.%s: processes must not be empty", DisplayTaskName(name))
			}
			for _, ref := range spec.Processes {
				if ref == "" {
					problems.addf("tasks.%s: processes contains an empty name", DisplayTaskName(name))
					continue
				}
				if _, ok := p.processes[ref]; !ok {
					problems.addf("tasks.%s: unknown process %q", DisplayTaskName(name), ref)
				}
			}
		case TaskGroup:
			if len(spec.Children) == 0 {
				problems.addf("tasks.%s: group must not be empty", DisplayTaskName(name))
			}
			for _, child := range spec.Children {
				if strings.Trim(child, ".") == "" {
					problems.addf("tasks.%s: group contains an empty name", DisplayTaskName(name))
				}
			}
		}
	}
}

func checkName(name string) string {
	if name == "" {
		return "name must not be empty"
	}
	if name == "." || name == ".." {
		return fmt.Sprintf("name %q is reserved", name)
	}
	for _, r := range name {
		switch {
		case r == '/' || r == '\\':
			return fmt.Sprintf("name %q must not contain path separators", name)
		case r == ':':
			return fmt.Sprintf("name %q must not contain %q", name, ":")
		case r <= ' ':
			return fmt.Sprintf("name %q must not contain whitespace", name)
		}
	}
	return ""
}
