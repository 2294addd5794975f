package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"drover/internal/daemonctl"
	"drover/internal/state"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

type statusPayload struct {
	Running bool               `json:"running"`
	State   *state.DaemonState `json:"state,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:         "status",
		Short:       "Show the state of the background manager and its processes",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			dir, err := ctx.stateDir()
			if err != nil {
				return err
			}

			st, err := daemonctl.Current(dir)
			if errors.Is(err, daemonctl.ErrNotRunning) {
				if jsonOut {
					return writeJSON(cmd, statusPayload{Running: false})
				}
				fmt.Fprintln(stdout, "No manager is running for this project")
				return nil
			}
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, statusPayload{Running: true, State: st})
			}

			fmt.Fprintf(stdout, "Project: %s\n", st.ProjectRoot)
			fmt.Fprintf(stdout, "Manager: pid %d, started %s\n", st.ManagerPID, humanize.Time(st.StartedAt))
			fmt.Fprintln(stdout, renderProcessTable(st, ctx.colorize(stdout)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the state snapshot as JSON")
	return cmd
}

func renderProcessTable(st *state.DaemonState, colorize bool) string {
	rows := make([][]string, 0, len(st.Processes))
	for i := range st.Processes {
		rec := &st.Processes[i]
		pid := "-"
		if rec.Status.Live() && rec.PID > 0 {
			pid = strconv.Itoa(rec.PID)
		}
		rows = append(rows, []string{
			rec.Name,
			statusCell(rec, colorize),
			pid,
			humanize.Time(rec.StartedAt),
			rec.StdoutPath,
		})
	}
	return renderTable([]string{"NAME", "STATUS", "PID", "STARTED", "LOG"}, rows, 2)
}

func statusCell(rec *state.ProcessRecord, colorize bool) string {
	label := string(rec.Status)
	var color string
	switch rec.Status {
	case state.StatusRunning:
		color = ansiGreen
	case state.StatusStarting:
		color = ansiBlue
	case state.StatusStopping, state.StatusStopped:
		color = ansiYellow
	case state.StatusExited:
		color = ansiRed
		if rec.ExitCode != nil {
			label = fmt.Sprintf("exited (%d)", *rec.ExitCode)
			if *rec.ExitCode == 0 {
				color = ansiGreen
			}
		}
	}
	if colorize && color != "" {
		return color + label + ansiReset
	}
	return label
}
