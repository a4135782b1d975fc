// Package timeutil provides shared time parsing utilities.
package timeutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var relativeTimeRe = regexp.MustCompile(`^(\d+)([smhdw])$`)

var units = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

// Parse parses a time string that can be either RFC3339 format or a relative
// duration like "2h", "30m", or "7d".
//
// Examples:
//   - "now" or "" -> current time
//   - "2h" -> 2 hours ago
//   - "7d" -> 7 days ago
//   - "2025-12-02T06:00:00Z" -> specific RFC3339 time
func Parse(input string) (time.Time, error) {
	return ParseAt(input, time.Now())
}

// ParseAt is Parse with relative values measured back from now.
func ParseAt(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" || input == "now" {
		return now.UTC(), nil
	}

	if t, err := time.Parse(time.RFC3339, input); err == nil {
		return t.UTC(), nil
	}

	if m := relativeTimeRe.FindStringSubmatch(input); m != nil {
		value, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid time format: %s", input)
		}
		return now.UTC().Add(-time.Duration(value) * units[m[2]]), nil
	}

	return time.Time{}, fmt.Errorf("invalid time format: %s - use RFC3339 (2025-12-02T06:00:00Z) or relative (2h, 30m, 7d)", input)
}

// ParseRange parses a start and end pair and checks the start is before the end.
func ParseRange(since, end string) (time.Time, time.Time, error) {
	now := time.Now()
	startTime, err := ParseAt(since, now)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time: %w", err)
	}
	endTime, err := ParseAt(end, now)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time: %w", err)
	}
	if !startTime.Before(endTime) {
		return time.Time{}, time.Time{}, fmt.Errorf("start time %s is not before end time %s",
			startTime.Format(time.RFC3339), endTime.Format(time.RFC3339))
	}
	return startTime, endTime, nil
}

// ParseDuration is time.ParseDuration plus a "d" suffix for whole days.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// FormatDuration formats a duration in a human-readable way.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%.1fh", d.Hours())
	}
	return fmt.Sprintf("%.1fd", d.Hours()/24)
}

// TimeRangeWarning represents a validation warning for a time range.
type TimeRangeWarning struct {
	Message string
	Level   string // "warning" or "info"
}

// ValidateTimeRange checks a time range for likely mistakes. It never blocks
// a request; the caller decides how to show the warnings.
func ValidateTimeRange(start, end time.Time) []TimeRangeWarning {
	var warnings []TimeRangeWarning
	now := time.Now()

	if end.After(now.Add(time.Minute)) {
		warnings = append(warnings, TimeRangeWarning{
			Message: fmt.Sprintf("end time is %s in the future - is this intentional?", FormatDuration(end.Sub(now))),
			Level:   "warning",
		})
	}

	if start.After(now.Add(time.Minute)) {
		warnings = append(warnings, TimeRangeWarning{
			Message: "start time is in the future - no results will be returned",
			Level:   "warning",
		})
	}

	duration := end.Sub(start)
	if duration > 30*24*time.Hour {
		warnings = append(warnings, TimeRangeWarning{
			Message: fmt.Sprintf("querying %s of data - this may be slow and expensive for CloudWatch", FormatDuration(duration)),
			Level:   "info",
		})
	}

	if duration < time.Minute && duration > 0 {
		warnings = append(warnings, TimeRangeWarning{
			Message: fmt.Sprintf("time range is only %s and shorter than the cache key resolution", FormatDuration(duration)),
			Level:   "info",
		})
	}

	return warnings
}

// FormatBytes converts bytes to human-readable format (e.g., "1.5 MB").
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
