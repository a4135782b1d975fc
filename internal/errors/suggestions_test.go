package errors

import (
	stderrors "errors"
	"slices"
	"strings"
	"testing"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"a", "", 1},
		{"", "a", 1},
		{"abc", "abc", 0},
		{"abc", "ab", 1},
		{"abc", "abd", 1},
		{"kitten", "sitting", 3},
		{"/app/api", "/app/apis", 1},
		{"/app", "/app/api", 4},
	}

	for _, tc := range tests {
		got := levenshtein(tc.a, tc.b)
		if got != tc.expected {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.expected)
		}
	}
}

func TestFindSimilar(t *testing.T) {
	candidates := []string{"/aws/lambda/api", "/aws/lambda/web", "/ecs/staging-api", "/ecs/dev-api"}

	tests := []struct {
		target      string
		maxDistance int
		want        []string
	}{
		{"/aws/lambda/apis", 2, []string{"/aws/lambda/api"}},
		{"/AWS/Lambda/API", 0, []string{"/aws/lambda/api"}},
		{"/aws/lambda/ap", 3, []string{"/aws/lambda/api", "/aws/lambda/web"}},
		{"/var/log/syslog", 3, nil},
	}

	for _, tc := range tests {
		got := findSimilar(tc.target, candidates, tc.maxDistance)
		if !slices.Equal(got, tc.want) {
			t.Errorf("findSimilar(%q, maxDist=%d) = %v, want %v", tc.target, tc.maxDistance, got, tc.want)
		}
	}
}

func TestFindSimilarCapsAtThree(t *testing.T) {
	got := findSimilar("a", []string{"b", "c", "d", "e", "f"}, 1)
	if len(got) != 3 {
		t.Errorf("expected 3 suggestions, got %v", got)
	}
}

func TestLogGroupNotFoundError(t *testing.T) {
	available := []string{"/app/api", "/app/web", "/staging"}
	err := LogGroupNotFoundError("/app/apis", available)

	errStr := err.Error()
	if !strings.Contains(errStr, `"/app/apis" not found`) {
		t.Errorf("error should contain the bad name: %s", errStr)
	}
	if !strings.Contains(errStr, "/app/api\n") {
		t.Errorf("error should suggest the similar group: %s", errStr)
	}
	if !strings.Contains(errStr, "hoard groups") {
		t.Errorf("error should suggest help command: %s", errStr)
	}
}

func TestInvalidTimeError(t *testing.T) {
	errStr := InvalidTimeError("yesterday").Error()

	if !strings.Contains(errStr, "yesterday") {
		t.Errorf("error should contain the bad input: %s", errStr)
	}
	if !strings.Contains(errStr, "RFC3339") {
		t.Errorf("error should mention RFC3339 format: %s", errStr)
	}
}

func TestMissingFlagError(t *testing.T) {
	errStr := MissingFlagError("--group", []string{"hoard query -g /app/api"}).Error()

	if !strings.HasPrefix(errStr, "--group is required") {
		t.Errorf("unexpected message: %s", errStr)
	}
	if !strings.Contains(errStr, "hoard query -g /app/api") {
		t.Errorf("error should include the example: %s", errStr)
	}
}

func TestUnknownStatisticError(t *testing.T) {
	valid := []string{"Sum", "Average", "Minimum", "Maximum", "SampleCount"}

	errStr := UnknownStatisticError("avrage", valid).Error()
	if !strings.Contains(errStr, "Average") || strings.Contains(errStr, "SampleCount") {
		t.Errorf("expected only the close match to be suggested: %s", errStr)
	}

	errStr = UnknownStatisticError("percentile99", valid).Error()
	for _, v := range valid {
		if !strings.Contains(errStr, v) {
			t.Errorf("with no close match every statistic should be listed, missing %s: %s", v, errStr)
		}
	}
}

func TestServerUnreachableErrorUnwraps(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := ServerUnreachableError("127.0.0.1:8787", cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if !strings.Contains(err.Error(), "127.0.0.1:8787: connection refused") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}
