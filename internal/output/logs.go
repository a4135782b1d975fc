package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmurray2011/hoard/internal/cloudwatch"
	"github.com/jmurray2011/hoard/internal/ui"
	"github.com/jmurray2011/hoard/pkg/timeutil"
)

const (
	dateLayout  = "2006-01-02"
	stampLayout = "2006-01-02 15:04:05.000"
)

func rfc3339(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// FormatLogGroups outputs log group information in the configured format.
func (f *Formatter) FormatLogGroups(groups []cloudwatch.LogGroupInfo) error {
	switch f.format {
	case FormatJSON:
		return f.writeJSON(nonNil(groups))
	case FormatCSV:
		rows := make([][]string, len(groups))
		for i, g := range groups {
			rows[i] = []string{g.Name, strconv.FormatInt(g.StoredBytes, 10), strconv.Itoa(g.RetentionDays), rfc3339(g.CreationTime)}
		}
		return f.writeCSV([]string{"name", "storedBytes", "retentionDays", "creationTime"}, rows)
	}

	if len(groups) == 0 {
		fmt.Fprintln(f.writer, f.paint(ui.MutedStyle, "No log groups found."))
		return nil
	}

	for _, g := range groups {
		fmt.Fprintln(f.writer, f.paint(ui.SuccessStyle, g.Name))

		retention := "never expires"
		if g.RetentionDays > 0 {
			retention = fmt.Sprintf("%d days", g.RetentionDays)
		}
		line := fmt.Sprintf("  Size: %s  |  Retention: %s", timeutil.FormatBytes(g.StoredBytes), retention)
		if !g.CreationTime.IsZero() {
			line += "  |  Created: " + g.CreationTime.Format(dateLayout)
		}
		fmt.Fprintln(f.writer, line)
	}
	return nil
}

// FormatStreams outputs log stream information in the configured format.
func (f *Formatter) FormatStreams(streams []cloudwatch.StreamInfo) error {
	switch f.format {
	case FormatJSON:
		return f.writeJSON(nonNil(streams))
	case FormatCSV:
		rows := make([][]string, len(streams))
		for i, s := range streams {
			rows[i] = []string{s.Name, rfc3339(s.LastEventTime), rfc3339(s.FirstEventTime)}
		}
		return f.writeCSV([]string{"name", "lastEventTime", "firstEventTime"}, rows)
	}

	if len(streams) == 0 {
		fmt.Fprintln(f.writer, f.paint(ui.MutedStyle, "No streams found."))
		return nil
	}

	rows := make([][]string, len(streams))
	for i, s := range streams {
		rows[i] = []string{s.Name, orNA(rfc3339(s.LastEventTime)), orNA(rfc3339(s.FirstEventTime))}
	}
	f.renderer.Table([]string{"STREAM", "LAST EVENT", "FIRST EVENT"}, rows)
	return nil
}

// FormatResults outputs Logs Insights rows. Rows without a timestamp or
// message are aggregation results and render as a table.
func (f *Formatter) FormatResults(results []cloudwatch.LogResult) error {
	switch f.format {
	case FormatJSON:
		return f.writeJSON(nonNil(results))
	case FormatCSV:
		rows := make([][]string, len(results))
		for i, r := range results {
			rows[i] = []string{rfc3339Nano(r.Timestamp), r.LogStream, r.Message, r.Ptr}
		}
		return f.writeCSV([]string{"timestamp", "logStream", "message", "ptr"}, rows)
	}

	if len(results) == 0 {
		f.renderer.NoResults()
		return nil
	}

	if results[0].Timestamp.IsZero() && results[0].Message == "" {
		return f.formatStatsText(results)
	}

	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(f.writer)
		}
		f.writeResultText(i+1, r)
	}
	return nil
}

// FormatRecord outputs a single record with every field it carries.
func (f *Formatter) FormatRecord(r cloudwatch.LogResult) error {
	switch f.format {
	case FormatJSON:
		return f.writeJSON(r)
	case FormatCSV:
		return f.FormatResults([]cloudwatch.LogResult{r})
	}

	f.writeResultText(0, r)

	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		if !strings.HasPrefix(name, "@") {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sortFields(names)
	fmt.Fprintln(f.writer)
	for _, name := range names {
		fmt.Fprintf(f.writer, "  %s %s\n", f.paint(ui.LabelStyle, name+":"), r.Fields[name])
	}
	return nil
}

// FormatTailEvent outputs one live event. JSON output is one object per line.
func (f *Formatter) FormatTailEvent(e cloudwatch.TailEvent) error {
	switch f.format {
	case FormatJSON:
		return f.writeJSONLine(e)
	case FormatCSV:
		return f.writeCSVRow([]string{rfc3339Nano(e.Timestamp), e.LogStream, e.Message})
	}

	fmt.Fprintf(f.writer, "%s %s %s\n",
		f.paint(ui.TimestampStyle, e.Timestamp.Local().Format(stampLayout)),
		f.paint(ui.LogStreamStyle, e.LogStream),
		f.highlighted(e.Message))
	return nil
}

func (f *Formatter) writeResultText(index int, r cloudwatch.LogResult) {
	if index > 0 {
		fmt.Fprint(f.writer, f.paint(ui.MutedStyle, fmt.Sprintf("[%d] ", index)))
	}
	fmt.Fprint(f.writer, f.paint(ui.TimestampStyle, r.Timestamp.Format(stampLayout)))
	if r.LogStream != "" {
		fmt.Fprint(f.writer, " | "+f.paint(ui.LogStreamStyle, r.LogStream))
	}
	if r.Ptr != "" {
		fmt.Fprint(f.writer, f.paint(ui.MutedStyle, "  @"+shortPtr(r.Ptr)))
	}
	fmt.Fprintln(f.writer)

	for _, line := range strings.Split(r.Message, "\n") {
		fmt.Fprintf(f.writer, "  %s\n", f.highlighted(line))
	}
}

func (f *Formatter) formatStatsText(results []cloudwatch.LogResult) error {
	var headers []string
	for name := range results[0].Fields {
		if name != "@ptr" {
			headers = append(headers, name)
		}
	}
	sortFields(headers)

	rows := make([][]string, len(results))
	for i, r := range results {
		row := make([]string, len(headers))
		for j, name := range headers {
			row[j] = r.Fields[name]
		}
		rows[i] = row
	}
	f.renderer.Table(headers, rows)
	return nil
}

func (f *Formatter) highlighted(s string) string {
	if f.highlight == nil || f.noColor {
		return s
	}
	return f.highlight.ReplaceAllStringFunc(s, func(match string) string {
		return ui.HighlightStyle.Render(match)
	})
}

// shortPtr keeps the tail of a record pointer, where CloudWatch puts the
// characters that tell records apart.
func shortPtr(ptr string) string {
	if len(ptr) > 12 {
		return ptr[len(ptr)-12:]
	}
	return ptr
}

func rfc3339Nano(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// nonNil makes empty results encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
