package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmurray2011/hoard/internal/cloudwatch"
	"github.com/jmurray2011/hoard/internal/ui"
)

const metricBarWidth = 40

// FormatMetricResult outputs metric statistics in the configured format.
func (f *Formatter) FormatMetricResult(result *cloudwatch.MetricResult) error {
	switch f.format {
	case FormatJSON:
		return f.writeJSON(result)
	case FormatCSV:
		rows := make([][]string, len(result.DataPoints))
		for i, dp := range result.DataPoints {
			rows[i] = []string{dp.Timestamp.UTC().Format(time.RFC3339), strconv.FormatFloat(dp.Value, 'f', -1, 64), dp.Unit}
		}
		return f.writeCSV([]string{"timestamp", "value", "unit"}, rows)
	}

	fmt.Fprintf(f.writer, "%s/%s (%s)\n",
		f.paint(ui.LabelStyle, result.Namespace),
		f.paint(ui.SuccessStyle, result.MetricName),
		result.Statistic)
	if len(result.Dimensions) > 0 {
		fmt.Fprintf(f.writer, "Dimensions: %s\n", joinDimensions(result.Dimensions, ", "))
	}
	fmt.Fprintln(f.writer)

	if len(result.DataPoints) == 0 {
		f.renderer.NoResults()
		return nil
	}

	maxVal := 0.0
	for _, dp := range result.DataPoints {
		maxVal = max(maxVal, dp.Value)
	}

	for _, dp := range result.DataPoints {
		ratio := 0.0
		if maxVal > 0 {
			ratio = dp.Value / maxVal
		}
		bar := strings.Repeat("#", int(ratio*metricBarWidth))
		switch {
		case ratio > 0.8:
			bar = f.paint(ui.ErrorStyle, bar)
		case ratio > 0.5:
			bar = f.paint(ui.WarningStyle, bar)
		default:
			bar = f.paint(ui.SuccessStyle, bar)
		}

		fmt.Fprintf(f.writer, "%s  %s  %s\n",
			f.paint(ui.TimestampStyle, dp.Timestamp.Local().Format("2006-01-02 15:04")),
			formatValue(dp.Value),
			bar)
	}
	return nil
}

func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%8.0f", v)
	}
	return fmt.Sprintf("%8.2f", v)
}

// FormatMetricsList outputs available metrics, grouped by namespace in text mode.
func (f *Formatter) FormatMetricsList(metrics []cloudwatch.MetricInfo) error {
	switch f.format {
	case FormatJSON:
		return f.writeJSON(nonNil(metrics))
	case FormatCSV:
		rows := make([][]string, len(metrics))
		for i, m := range metrics {
			rows[i] = []string{m.Namespace, m.MetricName, joinDimensions(m.Dimensions, ";")}
		}
		return f.writeCSV([]string{"namespace", "metricName", "dimensions"}, rows)
	}

	if len(metrics) == 0 {
		fmt.Fprintln(f.writer, f.paint(ui.MutedStyle, "No metrics found."))
		return nil
	}

	var namespace string
	for _, m := range metrics {
		if m.Namespace != namespace {
			namespace = m.Namespace
			fmt.Fprintln(f.writer, f.paint(ui.LabelStyle, namespace))
		}
		line := "  " + f.paint(ui.SuccessStyle, m.MetricName)
		if len(m.Dimensions) > 0 {
			line += "  " + f.paint(ui.MutedStyle, joinDimensions(m.Dimensions, " "))
		}
		fmt.Fprintln(f.writer, line)
	}
	return nil
}
