package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"drover/internal/task"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <task> [-- args...]",
		Short: "Run a named task",
		Long: `Run a task by name. Nested tasks are addressed with : or . (build:web
and build.web are the same task). Arguments after -- are forwarded to
every command the task runs. The task's exit code becomes drover's.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := ctx.ensureProject()
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			runner := task.NewRunner(project, ctx.printer(cmd.OutOrStdout()), -1)
			return runner.Run(signalCtx, args[0], args[1:])
		},
	}
}
