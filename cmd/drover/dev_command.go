package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"drover/internal/task"
)

func newDevCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "dev [process...]",
		Short: "Run processes in the foreground with multiplexed logs",
		Long: `Run the named processes (default: all) in the foreground. Output from
every process is merged onto the terminal with a colored [name] prefix.
Ctrl+C stops the whole set, escalating from SIGTERM to SIGKILL after
the configured grace period.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForeground(cmd, ctx, args)
		},
	}
}

// runForeground streams the selected processes to the terminal until
// they all exit or the session is interrupted.
func runForeground(cmd *cobra.Command, ctx *commandContext, names []string) error {
	project, err := ctx.ensureProject()
	if err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runner := task.NewRunner(project, ctx.printer(cmd.OutOrStdout()), -1)
	return runner.RunProcesses(signalCtx, names, nil)
}
