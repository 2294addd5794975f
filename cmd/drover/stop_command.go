package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"drover/internal/daemonctl"
	"drover/internal/supervisor"
)

func newStopCommand(ctx *commandContext) *cobra.Command {
	var graceFlag int

	cmd := &cobra.Command{
		Use:         "stop",
		Short:       "Stop the background manager and all of its processes",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			dir, err := ctx.stateDir()
			if err != nil {
				return err
			}

			result, err := daemonctl.StopAndWait(dir, resolveStopGrace(ctx, graceFlag))
			if errors.Is(err, daemonctl.ErrNotRunning) {
				fmt.Fprintln(stdout, "The manager is not running")
				return nil
			}
			if err != nil {
				return err
			}

			if len(result.Stopped) > 0 {
				fmt.Fprintf(stdout, "Stopped %s (manager pid %d)\n", strings.Join(result.Stopped, ", "), result.PID)
			} else {
				fmt.Fprintf(stdout, "Stopped the manager (pid %d)\n", result.PID)
			}
			if result.ForcedKill {
				fmt.Fprintln(stdout, "The manager did not exit in time and was killed")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&graceFlag, "grace", -1, "Seconds between SIGTERM and SIGKILL")
	return cmd
}

// resolveStopGrace picks the stop grace period: the explicit flag wins,
// then the project configuration when it is still readable, then the
// supervisor default. stop must keep working when the config is gone.
func resolveStopGrace(ctx *commandContext, graceFlag int) time.Duration {
	if graceFlag >= 0 {
		return time.Duration(graceFlag) * time.Second
	}
	if project, err := ctx.ensureProject(); err == nil {
		return time.Duration(project.Settings.GraceSeconds) * time.Second
	}
	return supervisor.DefaultGrace
}
