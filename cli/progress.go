package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var barStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))

const barWidth = 30

// ProgressReporter renders the progress of an upload.
type ProgressReporter struct {
	mu    sync.Mutex
	out   io.Writer
	label string
	start time.Time
	last  int
	tty   bool
}

// NewProgressReporter creates a reporter writing to out. Progress is drawn
// in place on a terminal and printed in 10% steps otherwise.
func NewProgressReporter(out io.Writer, label string) *ProgressReporter {
	tty := false
	if f, ok := out.(interface{ Fd() uintptr }); ok {
		tty = isatty.IsTerminal(f.Fd())
	}
	return &ProgressReporter{
		out:   out,
		label: label,
		start: time.Now(),
		last:  -1,
		tty:   tty,
	}
}

// Update reports a fraction in [0,1].
func (p *ProgressReporter) Update(fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	percent := int(fraction * 100)
	if !p.tty {
		step := percent / 10 * 10
		if step <= p.last {
			return
		}
		p.last = step
		fmt.Fprintf(p.out, "%s: %d%%\n", p.label, step)
		return
	}

	filled := barWidth * percent / 100
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)
	fmt.Fprintf(p.out, "\r%s [%s] %3d%%", p.label, barStyle.Render(bar), percent)
	p.last = percent
}

// Done finishes the progress line.
func (p *ProgressReporter) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tty {
		fmt.Fprintln(p.out)
	}
	fmt.Fprintf(p.out, "%s finished in %s\n", p.label, time.Since(p.start).Round(time.Millisecond))
}
