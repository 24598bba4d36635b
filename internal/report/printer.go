// Package report renders the console output of the check command.
package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/naka-gawa/branch-usage-checker/internal/domain"
	"github.com/naka-gawa/branch-usage-checker/internal/gateway"
)

var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorBlue   = lipgloss.Color("75")
	colorGray   = lipgloss.Color("245")
	colorDim    = lipgloss.Color("240")
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
)

type styles struct {
	success lipgloss.Style
	err     lipgloss.Style
	warning lipgloss.Style
	info    lipgloss.Style
	header  lipgloss.Style
	cell    lipgloss.Style
	number  lipgloss.Style
	link    lipgloss.Style
	border  lipgloss.Style
}

// Printer writes status lines and tables to a single writer.
// Colors are only emitted when the writer is a terminal.
type Printer struct {
	w      io.Writer
	styles styles
}

// NewPrinter creates a Printer that writes to w.
func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	cell := r.NewStyle().Padding(0, 1)
	return &Printer{
		w: w,
		styles: styles{
			success: r.NewStyle().Foreground(colorGreen),
			err:     r.NewStyle().Foreground(colorRed),
			warning: r.NewStyle().Foreground(colorYellow),
			info:    r.NewStyle().Foreground(colorGray),
			header:  cell.Bold(true).Foreground(colorCyan),
			cell:    cell,
			number:  cell.Align(lipgloss.Right),
			link:    cell.Foreground(colorBlue),
			border:  r.NewStyle().Foreground(colorDim),
		},
	}
}

// Info prints a status line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintln(p.w, p.styles.info.Render(iconInfo)+" "+fmt.Sprintf(format, args...))
}

// Success prints a success line.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, p.styles.success.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

// Warn prints a warning line.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.w, p.styles.warning.Render(iconWarning)+" "+p.styles.warning.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error line.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(p.w, p.styles.err.Render(iconError)+" "+fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (p *Printer) Newline() {
	fmt.Fprintln(p.w)
}

// BranchSkipped explains why a branch was left out of the statistics.
func (p *Printer) BranchSkipped(branch string, err error) {
	var statusErr *gateway.StatusError
	var mismatch *domain.MismatchError
	switch {
	case errors.As(err, &statusErr):
		p.Warn("Failed to fetch stats for %s (HTTP %d), skipping.", branch, statusErr.Code)
	case errors.As(err, &mismatch):
		p.Warn("Malformed stats for %s (%s), skipping.", branch, mismatch)
	case errors.Is(err, gateway.ErrMalformedPayload):
		p.Warn("Malformed stats for %s, skipping.", branch)
	default:
		p.Warn("Failed to fetch stats for %s (%v), skipping.", branch, err)
	}
}
