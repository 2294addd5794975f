package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"drover/internal/config"
	"drover/internal/task"
)

// listTask is one task entry in list output.
type listTask struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Children  []string `json:"children,omitempty"`
	Processes []string `json:"processes,omitempty"`
	Parallel  bool     `json:"parallel,omitempty"`
}

type listPayload struct {
	Source    string     `json:"source"`
	Format    string     `json:"format"`
	Processes []string   `json:"processes"`
	Tasks     []listTask `json:"tasks"`
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var namesOnly bool
	var tasksOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the configured processes and tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := ctx.ensureProject()
			if err != nil {
				return err
			}
			payload := gatherList(project)
			switch {
			case asJSON:
				return writeJSON(cmd, payload)
			case namesOnly:
				printListNames(cmd, payload, tasksOnly)
			default:
				printList(cmd, payload, project.Format, tasksOnly)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	cmd.Flags().BoolVar(&namesOnly, "names-only", false, "Print bare names only, one per line")
	cmd.Flags().BoolVar(&tasksOnly, "tasks-only", false, "Show tasks and omit processes")
	return cmd
}

// gatherList collects the configured names in display form, ordered
// case-insensitively so list output is stable across platforms.
func gatherList(project *config.Project) listPayload {
	coll := collate.New(language.Und, collate.IgnoreCase)

	processes := project.ProcessNames()
	coll.SortStrings(processes)

	all := project.Tasks()
	tasks := make([]listTask, 0, len(all))
	for name, spec := range all {
		entry := listTask{
			Name: config.DisplayTaskName(name),
			Type: spec.Kind.String(),
		}
		switch spec.Kind {
		case config.TaskGroup:
			children := make([]string, 0, len(spec.Children))
			for _, child := range spec.Children {
				children = append(children, config.DisplayTaskName(task.ChildName(name, child)))
			}
			coll.SortStrings(children)
			entry.Children = children
			entry.Parallel = spec.Parallel
		case config.TaskProcesses:
			entry.Processes = append([]string(nil), spec.Processes...)
			coll.SortStrings(entry.Processes)
		}
		tasks = append(tasks, entry)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return coll.CompareString(tasks[i].Name, tasks[j].Name) < 0
	})

	return listPayload{
		Source:    project.Source,
		Format:    string(project.Format),
		Processes: processes,
		Tasks:     tasks,
	}
}

func printList(cmd *cobra.Command, payload listPayload, format config.Format, tasksOnly bool) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Source: %s\n", payload.Source)

	if !tasksOnly {
		fmt.Fprintf(out, "Processes (%d):\n", len(payload.Processes))
		if len(payload.Processes) == 0 {
			fmt.Fprintln(out, "  (none)")
		}
		for _, name := range payload.Processes {
			fmt.Fprintf(out, "  %s\n", name)
		}
	}

	if format == config.FormatProcfile {
		fmt.Fprintln(out, "Tasks: (not available with Procfile)")
		return
	}
	fmt.Fprintf(out, "Tasks (%d):\n", len(payload.Tasks))
	if len(payload.Tasks) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, t := range payload.Tasks {
		fmt.Fprintf(out, "  %s\n", describeTask(t))
	}
}

// describeTask renders one human-readable task line. Leaf commands are just
// the name; groups and process references list what they expand to.
func describeTask(t listTask) string {
	switch {
	case t.Type == "group" && len(t.Children) > 0:
		return fmt.Sprintf("%s (group: %s)", t.Name, strings.Join(t.Children, ", "))
	case t.Type == "group":
		return fmt.Sprintf("%s (group)", t.Name)
	case t.Type == "processes" && len(t.Processes) > 0:
		return fmt.Sprintf("%s (processes: %s)", t.Name, strings.Join(t.Processes, ", "))
	case t.Type == "processes":
		return fmt.Sprintf("%s (processes)", t.Name)
	default:
		return t.Name
	}
}

func printListNames(cmd *cobra.Command, payload listPayload, tasksOnly bool) {
	out := cmd.OutOrStdout()
	if !tasksOnly {
		for _, name := range payload.Processes {
			fmt.Fprintln(out, name)
		}
	}
	for _, t := range payload.Tasks {
		fmt.Fprintln(out, t.Name)
	}
}
