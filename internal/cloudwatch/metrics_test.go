package cloudwatch

import (
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

func TestParseStatistic(t *testing.T) {
	tests := []struct {
		input  string
		want   types.Statistic
		wantOK bool
	}{
		{"sum", types.StatisticSum, true},
		{"Sum", types.StatisticSum, true},
		{"", types.StatisticSum, true},
		{"average", types.StatisticAverage, true},
		{"AVG", types.StatisticAverage, true},
		{"min", types.StatisticMinimum, true},
		{"Minimum", types.StatisticMinimum, true},
		{"MAX", types.StatisticMaximum, true},
		{"maximum", types.StatisticMaximum, true},
		{"SampleCount", types.StatisticSampleCount, true},
		{"count", types.StatisticSampleCount, true},
		{" avg ", types.StatisticAverage, true},
		{"p99", "", false},
		{"unknown", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseStatistic(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseStatistic(%q) = %v, %v, want %v, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestStatisticNamesParse(t *testing.T) {
	for _, name := range StatisticNames() {
		if _, ok := ParseStatistic(name); !ok {
			t.Errorf("StatisticNames() lists %q but ParseStatistic rejects it", name)
		}
	}
}

func TestDatapointValue(t *testing.T) {
	dp := types.Datapoint{
		Timestamp:   aws.Time(time.Now()),
		Sum:         aws.Float64(10),
		Average:     aws.Float64(2.5),
		Minimum:     aws.Float64(1),
		Maximum:     aws.Float64(4),
		SampleCount: aws.Float64(4),
	}

	tests := []struct {
		stat types.Statistic
		want float64
	}{
		{types.StatisticSum, 10},
		{types.StatisticAverage, 2.5},
		{types.StatisticMinimum, 1},
		{types.StatisticMaximum, 4},
		{types.StatisticSampleCount, 4},
	}
	for _, tt := range tests {
		if got := datapointValue(dp, tt.stat); got != tt.want {
			t.Errorf("datapointValue(%s) = %v, want %v", tt.stat, got, tt.want)
		}
	}

	if got := datapointValue(types.Datapoint{}, types.StatisticSum); got != 0 {
		t.Errorf("missing value should read as 0, got %v", got)
	}
}

func TestCommonNamespaces(t *testing.T) {
	namespaces := CommonNamespaces()

	if len(namespaces) == 0 {
		t.Fatal("CommonNamespaces() returned empty list")
	}

	expected := map[string]bool{
		"AWS/Lambda":   false,
		"AWS/EC2":      false,
		"AWS/ECS":      false,
		"AWS/RDS":      false,
		"AWS/DynamoDB": false,
		"AWS/Logs":     false,
	}
	for _, ns := range namespaces {
		if _, ok := expected[ns]; ok {
			expected[ns] = true
		}
		if !strings.HasPrefix(ns, "AWS/") {
			t.Errorf("CommonNamespaces() contains invalid namespace %q", ns)
		}
	}
	for ns, found := range expected {
		if !found {
			t.Errorf("CommonNamespaces() missing expected namespace %q", ns)
		}
	}
}

func TestParseDimensions(t *testing.T) {
	dims, err := ParseDimensions([]string{"FunctionName=checkout", "Alias=live", "Tag=a=b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(dims) != 3 || dims["FunctionName"] != "checkout" || dims["Tag"] != "a=b" {
		t.Errorf("ParseDimensions() = %v", dims)
	}

	if dims, err := ParseDimensions(nil); err != nil || dims != nil {
		t.Errorf("ParseDimensions(nil) = %v, %v", dims, err)
	}

	for _, bad := range []string{"novalue", "=x"} {
		if _, err := ParseDimensions([]string{bad}); err == nil {
			t.Errorf("ParseDimensions(%q) should fail", bad)
		}
	}
}
