package tui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/mvvm/pkg/viewmodel"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const barWidth = 20

// ProgressSource is a view-model reporting step progress.
type ProgressSource interface {
	Subscribe(h viewmodel.Handler) func()
	Busy() bool
	Progress() int
	Total() int
	Status() string
}

// Printer writes one status line per progress or status change.
type Printer struct {
	mu      sync.Mutex
	out     io.Writer
	profile termenv.Profile
	last    string
}

// NewPrinter writes to w. Colors are used only when w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{out: w, profile: profileFor(w)}
}

// Attach prints src's state on every relevant change and returns a function
// that detaches the printer.
func (p *Printer) Attach(src ProgressSource) func() {
	return src.Subscribe(func(e viewmodel.PropertyChanged) {
		switch e.Name {
		case "Progress", "Status":
			p.Print(src)
		}
	})
}

// Print writes src's current line unless it repeats the previous one.
func (p *Printer) Print(src ProgressSource) {
	line := p.Line(src)

	p.mu.Lock()
	defer p.mu.Unlock()
	if line == p.last {
		return
	}
	p.last = line
	fmt.Fprintln(p.out, line)
}

// Line renders src as "[#####.....]  50% Status".
func (p *Printer) Line(src ProgressSource) string {
	done, total := src.Progress(), src.Total()
	percent := 100
	if total > 0 {
		percent = done * 100 / total
	}
	filled := percent * barWidth / 100

	bar := strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled)
	status := p.profile.String(src.Status()).Foreground(p.profile.Color(statusColor(src)))
	return fmt.Sprintf("[%s] %3d%% %s", bar, percent, status)
}

func statusColor(src ProgressSource) string {
	switch {
	case src.Busy():
		return "#818cf8"
	case src.Status() == "Cancelled":
		return "#fb7185"
	default:
		return "#34d399"
	}
}

func profileFor(w io.Writer) termenv.Profile {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return termenv.ColorProfile()
	}
	return termenv.Ascii
}
