package ui

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Renderer handles all terminal output with consistent styling.
type Renderer struct {
	out       io.Writer
	err       io.Writer
	noColor   bool
	quiet     bool
	verbose   bool
	highlight *regexp.Regexp
}

// NewRenderer creates a new Renderer with default settings.
func NewRenderer() *Renderer {
	return &Renderer{
		out: os.Stdout,
		err: os.Stderr,
	}
}

// Option is a functional option for configuring the Renderer.
type Option func(*Renderer)

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(r *Renderer) {
		r.out = w
	}
}

// WithError sets the error writer.
func WithError(w io.Writer) Option {
	return func(r *Renderer) {
		r.err = w
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) Option {
	return func(r *Renderer) {
		r.noColor = noColor
	}
}

// WithQuiet suppresses status messages.
func WithQuiet(quiet bool) Option {
	return func(r *Renderer) {
		r.quiet = quiet
	}
}

// WithVerbose enables debug messages.
func WithVerbose(verbose bool) Option {
	return func(r *Renderer) {
		r.verbose = verbose
	}
}

// WithHighlight sets a pattern to highlight in log messages. An invalid
// pattern disables highlighting.
func WithHighlight(pattern string) Option {
	return func(r *Renderer) {
		if pattern != "" {
			r.highlight, _ = regexp.Compile("(?i)(" + pattern + ")")
		}
	}
}

// NewRendererWithOptions creates a new Renderer with the given options.
func NewRendererWithOptions(opts ...Option) *Renderer {
	r := NewRenderer()
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Out returns the writer for primary output.
func (r *Renderer) Out() io.Writer {
	return r.out
}

func (r *Renderer) render(style lipgloss.Style, text string) string {
	if r.noColor {
		return text
	}
	return style.Render(text)
}

// Status prints a status message to stderr (suppressed in quiet mode).
func (r *Renderer) Status(format string, args ...any) {
	if r.quiet {
		return
	}
	fmt.Fprintln(r.err, r.render(StatusStyle, fmt.Sprintf(format, args...)))
}

// Info prints an informational message.
func (r *Renderer) Info(format string, args ...any) {
	fmt.Fprintln(r.out, fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (r *Renderer) Success(format string, args ...any) {
	fmt.Fprintln(r.out, r.render(SuccessStyle, fmt.Sprintf(format, args...)))
}

// Warning prints a warning message to stderr.
func (r *Renderer) Warning(format string, args ...any) {
	fmt.Fprintln(r.err, r.render(WarningStyle, "Warning: "+fmt.Sprintf(format, args...)))
}

// Error prints an error message to stderr.
func (r *Renderer) Error(format string, args ...any) {
	fmt.Fprintln(r.err, r.render(ErrorStyle, "Error: "+fmt.Sprintf(format, args...)))
}

// Debug prints a debug message to stderr when verbose.
func (r *Renderer) Debug(format string, args ...any) {
	if !r.verbose {
		return
	}
	fmt.Fprintln(r.err, r.render(MutedStyle, "[DEBUG] "+fmt.Sprintf(format, args...)))
}

// KeyValue prints a key-value pair.
func (r *Renderer) KeyValue(key, value string) {
	fmt.Fprintf(r.out, "%s %s\n", r.render(LabelStyle, key+":"), value)
}

// Section prints a section title.
func (r *Renderer) Section(title string) {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, r.render(SectionTitleStyle, title))
}

// Newline prints a blank line.
func (r *Renderer) Newline() {
	fmt.Fprintln(r.out)
}

// LogEntry renders a log entry with timestamp and stream, followed by the
// indented message.
func (r *Renderer) LogEntry(timestamp, logStream, message string) {
	header := r.render(TimestampStyle, timestamp)
	if logStream != "" {
		header += " | " + r.render(LogStreamStyle, logStream)
	}
	fmt.Fprintln(r.out, header)

	if r.highlight != nil && !r.noColor {
		message = r.highlight.ReplaceAllStringFunc(message, func(match string) string {
			return HighlightStyle.Render(match)
		})
	}

	for _, line := range strings.Split(message, "\n") {
		fmt.Fprintf(r.out, "  %s\n", line)
	}
}

// Table renders a simple aligned table.
func (r *Renderer) Table(headers []string, rows [][]string) {
	if len(headers) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	parts := make([]string, len(headers))
	for i, h := range headers {
		parts[i] = r.render(LabelStyle, fmt.Sprintf("%-*s", widths[i], h))
	}
	fmt.Fprintln(r.out, strings.TrimRight(strings.Join(parts, "  "), " "))

	for i, w := range widths {
		parts[i] = strings.Repeat("-", w)
	}
	fmt.Fprintln(r.out, r.render(MutedStyle, strings.Join(parts, "  ")))

	for _, row := range rows {
		for i := range headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
		}
		fmt.Fprintln(r.out, strings.TrimRight(strings.Join(parts, "  "), " "))
	}
}

// UsageBar returns a fixed-width bar showing used out of capacity, e.g.
// "[######----] 60%". A negative capacity renders as unbounded and zero as
// disabled.
func (r *Renderer) UsageBar(used, capacity, width int) string {
	if capacity < 0 {
		return r.render(MutedStyle, "unbounded")
	}
	if capacity == 0 {
		return r.render(MutedStyle, "disabled")
	}
	if width <= 0 {
		width = 20
	}

	filled := used * width / capacity
	filled = max(0, min(filled, width))
	pct := used * 100 / capacity

	fill := strings.Repeat("#", filled)
	if used >= capacity {
		fill = r.render(UsageFullStyle, fill)
	} else {
		fill = r.render(UsageFillStyle, fill)
	}
	empty := r.render(UsageEmptyStyle, strings.Repeat("-", width-filled))

	return fmt.Sprintf("[%s%s] %d%%", fill, empty, pct)
}

// NoResults prints a "no results" message.
func (r *Renderer) NoResults() {
	fmt.Fprintln(r.out, r.render(MutedStyle, "No results found."))
}
