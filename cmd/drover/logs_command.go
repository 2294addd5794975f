package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"drover/internal/config"
	"drover/internal/logs"
	"drover/internal/state"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lineLimit int
	var names []string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show captured process log output",
		Long: `Print the last lines of the selected processes' log files, stdout and
stderr both, with the same [name] prefixes the foreground mode uses.
Logs survive the manager, so this also works after a stop or crash.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := ctx.ensureProject()
			if err != nil {
				return err
			}
			dir, err := ctx.stateDir()
			if err != nil {
				return err
			}

			selected := names
			if len(selected) == 0 {
				selected = project.ProcessNames()
			}
			if len(selected) == 0 {
				return errors.New("no processes configured")
			}
			for _, name := range selected {
				if _, ok := project.Process(name); !ok {
					return fmt.Errorf("unknown process %q", name)
				}
			}

			st := state.Load(dir)
			printer := ctx.printer(cmd.OutOrStdout())

			var followFiles []logs.FollowFile
			for _, name := range selected {
				stdoutPath, stderrPath := resolveLogPaths(project, st, dir, name)
				for _, stream := range []struct {
					path   string
					stderr bool
				}{
					{stdoutPath, false},
					{stderrPath, true},
				} {
					tail, offset, err := logs.Tail(stream.path, lineLimit)
					if err != nil && !errors.Is(err, logs.ErrNoLogs) {
						return err
					}
					for _, line := range tail {
						printer.Print(name, stream.stderr, line)
					}
					if follow {
						followFiles = append(followFiles, logs.FollowFile{
							Label:  name,
							Path:   stream.path,
							Stderr: stream.stderr,
							Offset: offset,
						})
					}
				}
			}

			if !follow {
				return nil
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return logs.FollowSet(signalCtx, followFiles, printer)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new log lines until interrupted")
	cmd.Flags().IntVarP(&lineLimit, "lines", "n", 20, "Number of trailing lines to show per stream")
	cmd.Flags().StringArrayVar(&names, "name", nil, "Limit output to the named process (repeatable)")
	return cmd
}

// resolveLogPaths prefers the paths the manager recorded, then the
// configured overrides, then the conventional defaults. The daemon does
// the same resolution when it starts writing.
func resolveLogPaths(project *config.Project, st *state.DaemonState, dir, name string) (string, string) {
	if st != nil {
		if rec := st.Process(name); rec != nil && rec.StdoutPath != "" && rec.StderrPath != "" {
			return rec.StdoutPath, rec.StderrPath
		}
	}
	stdoutPath, stderrPath := state.ProcessLogPaths(dir, name)
	if spec, ok := project.Process(name); ok {
		if spec.StdoutPath != "" {
			stdoutPath = spec.StdoutPath
		}
		if spec.StderrPath != "" {
			stderrPath = spec.StderrPath
		}
	}
	return stdoutPath, stderrPath
}
