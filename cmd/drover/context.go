package main

import (
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"drover/internal/config"
	"drover/internal/logmux"
	"drover/internal/state"
)

// commandContext carries the flag-derived project view shared by every
// subcommand. The configuration is loaded at most once per invocation.
type commandContext struct {
	rootFlag   *string
	configFlag *string
	colorFlag  *string

	projectOnce sync.Once
	project     *config.Project
	projectErr  error
}

func newCommandContext(rootFlag, configFlag, colorFlag *string) *commandContext {
	return &commandContext{
		rootFlag:   rootFlag,
		configFlag: configFlag,
		colorFlag:  colorFlag,
	}
}

func (c *commandContext) ensureProject() (*config.Project, error) {
	c.projectOnce.Do(func() {
		root := strings.TrimSpace(*c.rootFlag)
		if path := strings.TrimSpace(*c.configFlag); path != "" {
			c.project, c.projectErr = config.LoadFile(root, path)
			return
		}
		c.project, c.projectErr = config.Load(root)
	})
	return c.project, c.projectErr
}

// rootPath resolves the project root without requiring a configuration
// file, so state-only commands keep working after the config is gone.
func (c *commandContext) rootPath() (string, error) {
	return config.CanonicalRoot(*c.rootFlag)
}

func (c *commandContext) stateDir() (string, error) {
	root, err := c.rootPath()
	if err != nil {
		return "", err
	}
	return state.Dir(root)
}

func (c *commandContext) colorMode() (logmux.ColorMode, error) {
	return logmux.ParseColorMode(*c.colorFlag)
}

// printer builds the labeled-line sink for foreground and log output.
func (c *commandContext) printer(w io.Writer) *logmux.Printer {
	mode, err := c.colorMode()
	if err != nil {
		mode = logmux.ColorAuto
	}
	return logmux.NewPrinter(w, mode.Decide(w))
}

func (c *commandContext) colorize(w io.Writer) bool {
	mode, err := c.colorMode()
	if err != nil {
		mode = logmux.ColorAuto
	}
	return mode.Decide(w)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
