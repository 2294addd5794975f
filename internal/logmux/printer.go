package logmux

import (
	"fmt"
	"io"
	"sync"
)

// Printer renders labeled lines to a single destination. It is safe for
// concurrent use; every call emits one complete line.
type Printer struct {
	mu      sync.Mutex
	w       io.Writer
	colored bool
}

// NewPrinter wraps w. When colored is true, labels are wrapped in the
// ANSI color chosen by the label hash.
func NewPrinter(w io.Writer, colored bool) *Printer {
	return &Printer{w: w, colored: colored}
}

// Print writes one line as "[label] text". Stderr lines render the
// label with a "!" suffix in the same color as the stdout label.
func (p *Printer) Print(label string, stderr bool, text string) {
	display := label
	if stderr {
		display += "!"
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.colored {
		fmt.Fprintf(p.w, "\x1b[%dm[%s]\x1b[0m %s\n", labelColor(label), display, text)
		return
	}
	fmt.Fprintf(p.w, "[%s] %s\n", display, text)
}
