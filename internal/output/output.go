// Package output provides consistent CLI output formatting. Colors are
// enabled only when writing to a terminal.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette.
const (
	colorGreen  = "114"
	colorGray   = "245"
	colorRed    = "196"
	colorYellow = "220"
	colorCyan   = "81"
)

type styles struct {
	success lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	dim     lipgloss.Style
	accent  lipgloss.Style
}

func colorStyles() styles {
	return styles{
		success: lipgloss.NewStyle().Foreground(lipgloss.Color(colorGreen)),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		err:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
		dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		accent:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorCyan)),
	}
}

func plainStyles() styles {
	return styles{
		success: lipgloss.NewStyle(),
		warning: lipgloss.NewStyle(),
		err:     lipgloss.NewStyle(),
		dim:     lipgloss.NewStyle(),
		accent:  lipgloss.NewStyle(),
	}
}

// Writer provides formatted output for the CLI.
type Writer struct {
	out    io.Writer
	styles styles
}

// New creates a Writer. Color is used when out is a terminal.
func New(out io.Writer) *Writer {
	useColor := false
	if f, ok := out.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return NewWithColor(out, useColor)
}

// NewWithColor creates a Writer with explicit color control.
func NewWithColor(out io.Writer, useColor bool) *Writer {
	s := plainStyles()
	if useColor {
		s = colorStyles()
	}
	return &Writer{out: out, styles: s}
}

// Println writes a plain line.
// Write errors are intentionally ignored for console output.
func (w *Writer) Println(msg string) {
	_, _ = fmt.Fprintln(w.out, msg)
}

// Printf writes a formatted line.
func (w *Writer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, format+"\n", args...)
}

// Success prints a success message.
func (w *Writer) Success(msg string) {
	_, _ = fmt.Fprintln(w.out, w.styles.success.Render("✓ "+msg))
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	_, _ = fmt.Fprintln(w.out, w.styles.warning.Render("! "+msg))
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	_, _ = fmt.Fprintln(w.out, w.styles.err.Render("✗ "+msg))
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Field prints an aligned label/value pair.
func (w *Writer) Field(label, value string) {
	_, _ = fmt.Fprintf(w.out, "  %s %s\n",
		w.styles.dim.Render(fmt.Sprintf("%-16s", label+":")), value)
}

// Result prints one ranked search hit.
func (w *Writer) Result(rank int, hash, message string, score float64, matched []string) {
	short := hash
	if len(short) > 12 {
		short = short[:12]
	}
	_, _ = fmt.Fprintf(w.out, "%s %s  %s\n",
		w.styles.dim.Render(fmt.Sprintf("%2d.", rank)),
		w.styles.accent.Render(short),
		message)
	_, _ = fmt.Fprintf(w.out, "    %s\n",
		w.styles.dim.Render(fmt.Sprintf("score %.4f  matched [%s]", score, strings.Join(matched, " "))))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
