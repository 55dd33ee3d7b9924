package handlers

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/cost-onprem/installer/internal/outcome"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorYellow = lipgloss.Color("#eab308")
	colorRed    = lipgloss.Color("#ef4444")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	okStyle      = lipgloss.NewStyle().Foreground(colorGreen)
	warnStyle    = lipgloss.NewStyle().Foreground(colorYellow)
	failStyle    = lipgloss.NewStyle().Foreground(colorRed)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
)

// printer writes report lines, styled only on a terminal.
type printer struct {
	w      io.Writer
	styled bool
}

func newPrinter(w io.Writer) *printer {
	p := &printer{w: w}
	if f, ok := w.(*os.File); ok {
		p.styled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return p
}

func (p *printer) render(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

func (p *printer) title(s string) {
	fmt.Fprintf(p.w, "\n%s\n%s\n", p.render(titleStyle, s), p.render(dimStyle, strings.Repeat("═", len([]rune(s)))))
}

func (p *printer) section(s string) {
	fmt.Fprintf(p.w, "\n%s\n", p.render(sectionStyle, s))
}

func (p *printer) field(key, value string) {
	if value == "" {
		value = p.render(dimStyle, "-")
	}
	fmt.Fprintf(p.w, "  %-18s %s\n", key+":", value)
}

// mark prints one check line with an ok, warn or fail marker.
func (p *printer) mark(state, label, detail string) {
	var marker string
	switch state {
	case "ok":
		marker = p.render(okStyle, "✓")
	case "warn":
		marker = p.render(warnStyle, "!")
	default:
		marker = p.render(failStyle, "✗")
	}
	line := fmt.Sprintf("  %s %s", marker, label)
	if detail != "" {
		line += "  " + p.render(dimStyle, detail)
	}
	fmt.Fprintln(p.w, line)
}

// printFailure prints the diagnostic details a Failure carries.
func printFailure(w io.Writer, err error) {
	f, ok := outcome.AsFailure(err)
	if !ok {
		return
	}
	p := newPrinter(w)
	fmt.Fprintln(p.w, p.render(failStyle, "Installation stopped"))
	if f.Stage != "" {
		p.field("Stage", f.Stage)
	}
	if f.Strategy != "" {
		p.field("Strategy", f.Strategy)
	}
	if f.Missing != "" {
		p.field("Missing", f.Missing)
	}
	if f.Remediation != "" {
		p.field("Remediation", f.Remediation)
	}
}
