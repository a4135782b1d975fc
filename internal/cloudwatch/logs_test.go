package cloudwatch

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

func TestConvertToFilterPattern(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		want   string
	}{
		{"empty filter", "", ""},
		{"simple filter", "error", "error"},
		{"pipe-separated OR", "error|exception", `?"error" ?"exception"`},
		{"three terms", "error|warn|critical", `?"error" ?"warn" ?"critical"`},
		{"with extra whitespace", " error | exception ", `?"error" ?"exception"`},
		{"inner whitespace collapsed", "conn   reset|timeout", `?"conn reset" ?"timeout"`},
		{"empty term after split", "error||exception", `?"error" ?"exception"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := convertToFilterPattern(tt.filter)
			if got != tt.want {
				t.Errorf("convertToFilterPattern(%q) = %q, want %q", tt.filter, got, tt.want)
			}
		})
	}
}

func TestParseLogTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"Insights format", "2025-12-03 19:13:20.000", time.Date(2025, 12, 3, 19, 13, 20, 0, time.UTC), false},
		{"Insights without millis", "2025-12-03 19:13:20", time.Date(2025, 12, 3, 19, 13, 20, 0, time.UTC), false},
		{"RFC3339", "2025-12-03T19:13:20Z", time.Date(2025, 12, 3, 19, 13, 20, 0, time.UTC), false},
		{"RFC3339 with offset", "2025-12-03T19:13:20-05:00", time.Date(2025, 12, 4, 0, 13, 20, 0, time.UTC), false},
		{"ISO with milliseconds", "2025-12-03T19:13:20.123Z", time.Date(2025, 12, 3, 19, 13, 20, 123e6, time.UTC), false},
		{"invalid format", "not a timestamp", time.Time{}, true},
		{"empty string", "", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLogTimestamp(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLogTimestamp(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseLogTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseResults(t *testing.T) {
	rows := [][]types.ResultField{
		{
			{Field: aws.String("@timestamp"), Value: aws.String("2025-12-03 19:13:20.000")},
			{Field: aws.String("@message"), Value: aws.String("payment failed")},
			{Field: aws.String("@logStream"), Value: aws.String("api/1")},
			{Field: aws.String("@ptr"), Value: aws.String("CmAKJwoj")},
			{Field: aws.String("status"), Value: aws.String("500")},
			{Field: nil, Value: aws.String("ignored")},
		},
		{
			{Field: aws.String("count"), Value: aws.String("12")},
		},
	}

	got := parseResults(rows)
	if len(got) != 2 {
		t.Fatalf("parseResults() returned %d rows, want 2", len(got))
	}

	first := got[0]
	if first.Message != "payment failed" || first.LogStream != "api/1" || first.Ptr != "CmAKJwoj" {
		t.Errorf("well-known fields not lifted: %+v", first)
	}
	if !first.Timestamp.Equal(time.Date(2025, 12, 3, 19, 13, 20, 0, time.UTC)) {
		t.Errorf("Timestamp = %v", first.Timestamp)
	}
	if first.Fields["status"] != "500" {
		t.Errorf("custom field missing: %v", first.Fields)
	}
	if len(first.Fields) != 5 {
		t.Errorf("nil field names should be skipped, got %d fields", len(first.Fields))
	}

	if !got[1].Timestamp.IsZero() || got[1].Fields["count"] != "12" {
		t.Errorf("stats row = %+v", got[1])
	}
}

func TestBuildDefaultQuery(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		limit  int
		checks []string // strings that should be in the output
	}{
		{
			name:   "no filter",
			filter: "",
			limit:  100,
			checks: []string{"fields @timestamp", "@ptr", "sort @timestamp desc", "limit 100"},
		},
		{
			name:   "with filter",
			filter: "error",
			limit:  50,
			checks: []string{"filter @message like", "(?i)(error)", "limit 50"},
		},
		{
			name:   "zero limit uses default",
			filter: "",
			limit:  0,
			checks: []string{"limit 100"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildDefaultQuery(tt.filter, tt.limit)
			for _, check := range tt.checks {
				if !strings.Contains(got, check) {
					t.Errorf("BuildDefaultQuery(%q, %d) = %q, should contain %q", tt.filter, tt.limit, got, check)
				}
			}
		})
	}

	if strings.Contains(BuildDefaultQuery("", 10), "filter") {
		t.Error("empty filter should not add a filter clause")
	}
}

func TestBuildStatsQuery(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		limit  int
		checks []string
	}{
		{
			name:   "no filter",
			filter: "",
			limit:  100,
			checks: []string{"stats count()", "bin(5m)", "limit 100"},
		},
		{
			name:   "with filter",
			filter: "error",
			limit:  50,
			checks: []string{"filter @message like", "(?i)(error)", "stats count()", "limit 50"},
		},
		{
			name:   "negative limit uses default",
			filter: "",
			limit:  -1,
			checks: []string{"limit 100"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildStatsQuery(tt.filter, tt.limit)
			for _, check := range tt.checks {
				if !strings.Contains(got, check) {
					t.Errorf("BuildStatsQuery(%q, %d) = %q, should contain %q", tt.filter, tt.limit, got, check)
				}
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	wrapped := fmt.Errorf("failed to start query: %w", &types.ResourceNotFoundException{Message: aws.String("missing")})
	if !IsNotFound(wrapped) {
		t.Error("wrapped ResourceNotFoundException should be detected")
	}
	if IsNotFound(errors.New("throttled")) {
		t.Error("plain error reported as not found")
	}
}
