package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"drover/internal/daemonctl"
)

func newRestartCommand(ctx *commandContext) *cobra.Command {
	var graceFlag int
	var foreground bool
	var logLevel string

	cmd := &cobra.Command{
		Use:   "restart [process...]",
		Short: "Stop the background manager and start a fresh one",
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := ctx.ensureProject()
			if err != nil {
				return err
			}
			for _, name := range args {
				if _, ok := project.Process(name); !ok {
					return fmt.Errorf("unknown process %q", name)
				}
			}

			stdout := cmd.OutOrStdout()
			dir, err := ctx.stateDir()
			if err != nil {
				return err
			}
			grace := resolveStopGrace(ctx, graceFlag)

			if foreground {
				stop, err := daemonctl.StopAndWait(dir, grace)
				if err != nil && !errors.Is(err, daemonctl.ErrNotRunning) {
					return err
				}
				if err == nil {
					if len(stop.Stopped) > 0 {
						fmt.Fprintf(stdout, "Stopped %s (manager pid %d)\n", strings.Join(stop.Stopped, ", "), stop.PID)
					} else {
						fmt.Fprintf(stdout, "Stopped the manager (pid %d)\n", stop.PID)
					}
				}
				return runManagerForeground(cmd, project, graceFlag, logLevel, args)
			}

			result, err := daemonctl.Restart(dir, grace, daemonctl.LaunchOptions{
				Root:         project.Root,
				GraceSeconds: graceFlag,
				LogLevel:     logLevel,
				Only:         args,
			}, startWaitTimeout)
			if err != nil {
				return err
			}

			if result.WasRunning {
				fmt.Fprintf(stdout, "Stopped the previous manager (pid %d)\n", result.Stop.PID)
			}
			fmt.Fprintf(stdout, "Manager started (pid %d)\n", result.State.ManagerPID)
			fmt.Fprintln(stdout, renderProcessTable(result.State, ctx.colorize(stdout)))
			return nil
		},
	}
	cmd.Flags().IntVar(&graceFlag, "grace", -1, "Seconds between SIGTERM and SIGKILL while stopping")
	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run the new manager in the foreground instead of detaching")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Manager log level (debug, info, warn, error)")
	return cmd
}
