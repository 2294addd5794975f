package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var rootFlag string
	var configFlag string
	var colorFlag string

	ctx := newCommandContext(&rootFlag, &configFlag, &colorFlag)

	rootCmd := &cobra.Command{
		Use:           "drover",
		Short:         "Run and supervise the processes and tasks of a project",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.colorMode(); err != nil {
				return err
			}
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureProject()
			return err
		},
		// Bare drover behaves like dev: the named processes (default
		// all) in the foreground with multiplexed logs.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForeground(cmd, ctx, args)
		},
	}

	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "Project root directory (default: current directory)")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&colorFlag, "color", "", "Colorize output: auto, always, or never")

	rootCmd.AddCommand(newDevCommand(ctx))
	rootCmd.AddCommand(newStartCommand(ctx))
	rootCmd.AddCommand(newStopCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newRestartCommand(ctx))
	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
