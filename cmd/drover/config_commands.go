package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"drover/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand(ctx))
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a starter drover.toml in the project root",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := ctx.rootPath()
			if err != nil {
				return err
			}
			target := filepath.Join(root, config.TOMLFileName)
			if path := strings.TrimSpace(*ctx.configFlag); path != "" {
				// Resolve relative to the working directory, the same
				// way --config is resolved when loading.
				if target, err = filepath.Abs(path); err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := os.WriteFile(target, []byte(config.Sample()), 0o644); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the process commands, then run drover to bring them up.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite an existing configuration file")
	return cmd
}

// displayDir renders a working directory relative to the project root when
// it lives inside it. Dirs resolve to absolute paths at load time, so the
// common case of "no cwd configured" comes back as the root itself.
func displayDir(root, dir string) string {
	if dir == root {
		return "."
	}
	if rel, err := filepath.Rel(root, dir); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return dir
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := ctx.ensureProject()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Source: %s (%s)\n", project.Source, project.Format)
			fmt.Fprintf(out, "Root: %s\n", project.Root)
			fmt.Fprintf(out, "Grace: %s\n", time.Duration(project.Settings.GraceSeconds)*time.Second)
			fmt.Fprintf(out, "Log level: %s\n", project.Settings.LogLevel)

			specs := project.Processes()
			fmt.Fprintf(out, "\nProcesses (%d):\n", len(specs))
			if len(specs) == 0 {
				fmt.Fprintln(out, "  (none)")
			} else {
				rows := make([][]string, 0, len(specs))
				for _, spec := range specs {
					rows = append(rows, []string{spec.Name, spec.Command, displayDir(project.Root, spec.Dir)})
				}
				fmt.Fprintln(out, renderTable([]string{"NAME", "COMMAND", "DIR"}, rows))
			}

			payload := gatherList(project)
			fmt.Fprintf(out, "\nTasks (%d):\n", len(payload.Tasks))
			if len(payload.Tasks) == 0 {
				fmt.Fprintln(out, "  (none)")
			}
			for _, t := range payload.Tasks {
				fmt.Fprintf(out, "  %s\n", describeTask(t))
			}
			return nil
		},
	}
}
