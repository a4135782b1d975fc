// Package errors provides enhanced error messages with suggestions.
package errors

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// SuggestiveError is an error that includes suggestions for fixing the problem.
type SuggestiveError struct {
	Message     string
	Suggestions []string
	HelpCommand string
	Cause       error
}

func (e *SuggestiveError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nDid you mean one of these?\n")
		for _, s := range e.Suggestions {
			b.WriteString("  ")
			b.WriteString(s)
			b.WriteString("\n")
		}
	}

	if e.HelpCommand != "" {
		b.WriteString("\nRun '")
		b.WriteString(e.HelpCommand)
		b.WriteString("' for more information.")
	}

	return b.String()
}

func (e *SuggestiveError) Unwrap() error {
	return e.Cause
}

// LogGroupNotFoundError creates an error for a log group that does not
// exist, suggesting near matches from available.
func LogGroupNotFoundError(name string, available []string) error {
	return &SuggestiveError{
		Message:     fmt.Sprintf("log group %q not found", name),
		Suggestions: findSimilar(name, available, 3),
		HelpCommand: "hoard groups",
	}
}

// InvalidTimeError creates an error for invalid time format.
func InvalidTimeError(input string) error {
	return &SuggestiveError{
		Message: fmt.Sprintf("invalid time format %q", input),
		Suggestions: []string{
			"Relative: 1h, 30m, 2d, 1w (hours, minutes, days, weeks ago)",
			"Absolute: 2024-01-15T10:30:00Z (RFC3339)",
		},
	}
}

// MissingFlagError creates an error for a missing required flag.
func MissingFlagError(flag string, examples []string) error {
	return &SuggestiveError{
		Message:     fmt.Sprintf("%s is required", flag),
		Suggestions: examples,
	}
}

// UnknownStatisticError creates an error for a metric statistic that is not
// recognized.
func UnknownStatisticError(stat string, valid []string) error {
	suggestions := findSimilar(stat, valid, 4)
	if len(suggestions) == 0 {
		suggestions = valid
	}
	return &SuggestiveError{
		Message:     fmt.Sprintf("unknown statistic %q", stat),
		Suggestions: suggestions,
	}
}

// ServerUnreachableError creates an error for a hoard server that could not
// be contacted.
func ServerUnreachableError(addr string, cause error) error {
	return &SuggestiveError{
		Message: fmt.Sprintf("cannot reach hoard server at %s", addr),
		Cause:   cause,
		Suggestions: []string{
			"hoard serve                  - Start the cache server",
			"hoard cache stats --addr ... - Point at a different address",
		},
	}
}

// findSimilar returns up to 3 candidates within maxDistance edits of target,
// closest first. Comparison is case-insensitive.
func findSimilar(target string, candidates []string, maxDistance int) []string {
	type match struct {
		value    string
		distance int
	}

	var matches []match
	targetLower := strings.ToLower(target)
	for _, c := range candidates {
		if d := levenshtein(targetLower, strings.ToLower(c)); d <= maxDistance {
			matches = append(matches, match{value: c, distance: d})
		}
	}

	slices.SortStableFunc(matches, func(a, b match) int {
		return cmp.Compare(a.distance, b.distance)
	})

	var result []string
	for i := 0; i < len(matches) && i < 3; i++ {
		result = append(result, matches[i].value)
	}
	return result
}

// levenshtein calculates the edit distance between two strings using two
// rolling rows.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
