package logmux

import (
	"fmt"
	"hash/fnv"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// ColorMode controls whether labels are wrapped in ANSI color codes.
type ColorMode int

const (
	// ColorAuto enables color when the destination is a terminal,
	// NO_COLOR is unset, and DROVER_COLOR does not say otherwise.
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// ParseColorMode maps a --color flag value onto a ColorMode.
func ParseColorMode(value string) (ColorMode, error) {
	switch value {
	case "", "auto":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	default:
		return ColorAuto, fmt.Errorf("invalid color mode %q (expected auto, always, or never)", value)
	}
}

func (m ColorMode) String() string {
	switch m {
	case ColorAlways:
		return "always"
	case ColorNever:
		return "never"
	default:
		return "auto"
	}
}

// Decide resolves the mode against the environment and the destination
// writer. Explicit always/never wins, then the DROVER_COLOR variable,
// then terminal detection with NO_COLOR respected.
func (m ColorMode) Decide(w io.Writer) bool {
	switch m {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if value, ok := os.LookupEnv("DROVER_COLOR"); ok {
		if mode, err := ParseColorMode(value); err == nil && mode != ColorAuto {
			return mode == ColorAlways
		}
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

// The classic 8-color foregrounds minus black and white, plus their
// bright variants. Twelve entries keeps adjacent process names likely
// to land on distinct colors without depending on 256-color support.
var palette = [...]int{31, 32, 33, 34, 35, 36, 91, 92, 93, 94, 95, 96}

// labelColor picks a stable ANSI code for a process name. The same name
// hashes to the same color on every run.
func labelColor(label string) int {
	h := fnv.New64a()
	io.WriteString(h, label)
	return palette[h.Sum64()%uint64(len(palette))]
}
