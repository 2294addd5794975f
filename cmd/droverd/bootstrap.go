package main

import (
	"time"

	"github.com/spf13/pflag"

	"drover/internal/daemonrun"
)

// parseFlags reads the manager flags forwarded by the drover CLI.
func parseFlags(args []string) (daemonrun.Options, string, error) {
	fs := pflag.NewFlagSet("droverd", pflag.ContinueOnError)
	root := fs.String("root", ".", "project root directory")
	grace := fs.Int("grace", -1, "seconds between SIGTERM and SIGKILL at shutdown")
	logLevel := fs.String("log-level", "", "manager log level (debug, info, warn, error)")
	only := fs.StringArray("only", nil, "limit supervision to the named process (repeatable)")
	if err := fs.Parse(args); err != nil {
		return daemonrun.Options{}, "", err
	}

	opts := daemonrun.Options{
		Grace:    -1,
		LogLevel: *logLevel,
		Only:     *only,
	}
	if *grace >= 0 {
		opts.Grace = time.Duration(*grace) * time.Second
	}
	return opts, *root, nil
}
