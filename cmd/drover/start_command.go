package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"drover/internal/config"
	"drover/internal/daemonctl"
	"drover/internal/daemonrun"
)

const startWaitTimeout = 10 * time.Second

func newStartCommand(ctx *commandContext) *cobra.Command {
	var graceFlag int
	var foreground bool
	var logLevel string

	cmd := &cobra.Command{
		Use:   "start [process...]",
		Short: "Start the project's processes under the background manager",
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

			if foreground {
				return runManagerForeground(cmd, project, graceFlag, logLevel, args)
			}

			dir, err := ctx.stateDir()
			if err != nil {
				return err
			}
			result, err := daemonctl.Start(dir, daemonctl.LaunchOptions{
				Root:         project.Root,
				GraceSeconds: graceFlag,
				LogLevel:     logLevel,
				Only:         args,
			}, startWaitTimeout)
			if err != nil {
				return err
			}
			if result.AlreadyRunning {
				return fmt.Errorf("a manager is already running for this project (pid %d); use restart or stop first", result.State.ManagerPID)
			}

			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Manager started (pid %d)\n", result.State.ManagerPID)
			fmt.Fprintln(stdout, renderProcessTable(result.State, ctx.colorize(stdout)))
			return nil
		},
	}
	cmd.Flags().IntVar(&graceFlag, "grace", -1, "Seconds between SIGTERM and SIGKILL at shutdown")
	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run the manager in the foreground instead of detaching")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Manager log level (debug, info, warn, error)")
	return cmd
}

// runManagerForeground runs the manager in this process. Logs still go
// to the per-process files; only the manager's own output reaches the
// terminal.
func runManagerForeground(cmd *cobra.Command, project *config.Project, graceSeconds int, logLevel string, only []string) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := daemonrun.Options{Grace: -1, LogLevel: logLevel, Only: only}
	if graceSeconds >= 0 {
		opts.Grace = time.Duration(graceSeconds) * time.Second
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Running the manager in the foreground. Press Ctrl+C to stop.")
	return daemonrun.Run(signalCtx, project, opts)
}
