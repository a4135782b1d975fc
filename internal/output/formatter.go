// Package output renders command results as text, JSON or CSV.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jmurray2011/hoard/internal/logging"
	"github.com/jmurray2011/hoard/internal/ui"
)

// Format specifies the output format type.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Formats lists the supported output formats.
func Formats() []Format {
	return []Format{FormatText, FormatJSON, FormatCSV}
}

// ParseFormat validates a format name. Empty means text.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatText, nil
	}
	f := Format(strings.ToLower(s))
	if !slices.Contains(Formats(), f) {
		return "", fmt.Errorf("unknown output format %q (use text, json or csv)", s)
	}
	return f, nil
}

// Formatter handles output formatting for different formats.
type Formatter struct {
	format    Format
	writer    io.Writer
	noColor   bool
	highlight *regexp.Regexp
	renderer  *ui.Renderer
}

// NewFormatter creates a new formatter with the specified format. Unknown
// formats fall back to text.
func NewFormatter(format string, writer io.Writer) *Formatter {
	f, err := ParseFormat(format)
	if err != nil {
		f = FormatText
	}
	return &Formatter{
		format:   f,
		writer:   writer,
		renderer: ui.NewRendererWithOptions(ui.WithOutput(writer)),
	}
}

// WithNoColor disables styling in text output.
func (f *Formatter) WithNoColor(noColor bool) *Formatter {
	f.noColor = noColor
	f.renderer = ui.NewRendererWithOptions(ui.WithOutput(f.writer), ui.WithNoColor(noColor))
	return f
}

// WithHighlight sets a pattern to highlight in text output.
// The pattern is treated as a regular expression.
func (f *Formatter) WithHighlight(pattern string) *Formatter {
	if pattern != "" {
		re, err := regexp.Compile("(?i)(" + pattern + ")")
		if err != nil {
			logging.Warn("Invalid highlight pattern %q: %v (highlighting disabled)", pattern, err)
		} else {
			f.highlight = re
		}
	}
	return f
}

func (f *Formatter) paint(style lipgloss.Style, text string) string {
	if f.noColor {
		return text
	}
	return style.Render(text)
}

func (f *Formatter) writeJSON(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (f *Formatter) writeCSV(header []string, rows [][]string) error {
	w := csv.NewWriter(f.writer)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return w.Error()
}

// writeJSONLine writes v as a single compact line, for streamed output.
func (f *Formatter) writeJSONLine(v any) error {
	return json.NewEncoder(f.writer).Encode(v)
}

func (f *Formatter) writeCSVRow(row []string) error {
	w := csv.NewWriter(f.writer)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// sortFields sorts field names with common aggregation fields first.
func sortFields(fields []string) {
	priority := map[string]int{
		"time_bucket": 0,
		"count":       1,
		"sum":         2,
		"avg":         3,
		"min":         4,
		"max":         5,
	}

	slices.SortFunc(fields, func(a, b string) int {
		pa, oka := priority[a]
		pb, okb := priority[b]
		switch {
		case oka && okb:
			return pa - pb
		case oka:
			return -1
		case okb:
			return 1
		}
		return strings.Compare(a, b)
	})
}

// joinDimensions renders dimensions as sorted "k=v" pairs.
func joinDimensions(dims map[string]string, sep string) string {
	pairs := make([]string, 0, len(dims))
	for k, v := range dims {
		pairs = append(pairs, k+"="+v)
	}
	slices.Sort(pairs)
	return strings.Join(pairs, sep)
}
