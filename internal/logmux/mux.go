package logmux

import (
	"bufio"
	"context"
	"io"
	"sync"
)

// maxLineBytes bounds a single scanned line. Longer lines fail the
// scanner for that stream only; the other streams keep flowing.
const maxLineBytes = 1 << 20

type source struct {
	label  string
	stderr bool
	r      io.Reader
}

// Mux fans several line streams into one Printer. Register streams with
// Add or AddStderr before calling Run.
type Mux struct {
	printer *Printer
	sources []source
}

// New returns a Mux that renders through printer.
func New(printer *Printer) *Mux {
	return &Mux{printer: printer}
}

// Add registers a stdout stream under the given label.
func (m *Mux) Add(label string, r io.Reader) {
	m.sources = append(m.sources, source{label: label, r: r})
}

// AddStderr registers a stderr stream. Its lines render with the label
// suffixed by "!".
func (m *Mux) AddStderr(label string, r io.Reader) {
	m.sources = append(m.sources, source{label: label, stderr: true, r: r})
}

type muxLine struct {
	src  source
	text string
}

// Run pumps lines until every stream hits EOF or ctx is cancelled. A
// line already read when cancellation lands is still written in full;
// nothing is truncated mid-line. Reader goroutines blocked on a live
// stream exit once their stream closes.
func (m *Mux) Run(ctx context.Context) error {
	lines := make(chan muxLine, 64)

	var wg sync.WaitGroup
	for _, src := range m.sources {
		wg.Add(1)
		go func(src source) {
			defer wg.Done()
			scanner := bufio.NewScanner(src.r)
			scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
			for scanner.Scan() {
				select {
				case lines <- muxLine{src: src, text: scanner.Text()}:
				case <-ctx.Done():
					return
				}
			}
		}(src)
	}
	go func() {
		wg.Wait()
		close(lines)
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			m.printer.Print(line.src.label, line.src.stderr, line.text)
		case <-ctx.Done():
			// Flush what the readers already queued, then stop.
			for {
				select {
				case line, ok := <-lines:
					if !ok {
						return ctx.Err()
					}
					m.printer.Print(line.src.label, line.src.stderr, line.text)
				default:
					return ctx.Err()
				}
			}
		}
	}
}
