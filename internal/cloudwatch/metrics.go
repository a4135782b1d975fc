package cloudwatch

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// MetricsReader is the read-only CloudWatch metrics surface served through the cache.
type MetricsReader interface {
	GetMetricStatistics(ctx context.Context, params MetricQueryParams) (*MetricResult, error)
	ListMetrics(ctx context.Context, namespace, metricName string) ([]MetricInfo, error)
}

// MetricsAPI wraps the CloudWatch client with convenience methods for metrics.
type MetricsAPI struct {
	client *cloudwatch.Client
}

var _ MetricsReader = (*MetricsAPI)(nil)

// NewMetricsAPI creates a new MetricsAPI wrapper from an SDK client.
func NewMetricsAPI(client *cloudwatch.Client) *MetricsAPI {
	return &MetricsAPI{client: client}
}

// MetricDataPoint represents a single data point in a time series.
type MetricDataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit,omitempty"`
}

// MetricResult represents the result of a metric query.
type MetricResult struct {
	Namespace  string            `json:"namespace"`
	MetricName string            `json:"metricName"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
	Statistic  string            `json:"statistic"`
	Period     time.Duration     `json:"period"`
	DataPoints []MetricDataPoint `json:"dataPoints"`
}

// MetricInfo represents information about an available metric.
type MetricInfo struct {
	Namespace  string            `json:"namespace"`
	MetricName string            `json:"metricName"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
}

// MetricQueryParams holds parameters for querying metrics.
type MetricQueryParams struct {
	Namespace  string            `json:"namespace"`
	MetricName string            `json:"metricName"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
	Statistic  string            `json:"statistic"`
	Period     time.Duration     `json:"period"`
	StartTime  time.Time         `json:"startTime"`
	EndTime    time.Time         `json:"endTime"`
}

// GetMetricStatistics queries CloudWatch for metric statistics. Data points
// come back oldest first.
func (c *MetricsAPI) GetMetricStatistics(ctx context.Context, params MetricQueryParams) (*MetricResult, error) {
	stat, ok := ParseStatistic(params.Statistic)
	if !ok {
		return nil, fmt.Errorf("unknown statistic: %s", params.Statistic)
	}

	input := &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(params.Namespace),
		MetricName: aws.String(params.MetricName),
		StartTime:  aws.Time(params.StartTime),
		EndTime:    aws.Time(params.EndTime),
		Period:     aws.Int32(int32(params.Period.Seconds())),
		Statistics: []types.Statistic{stat},
	}
	for name, value := range params.Dimensions {
		input.Dimensions = append(input.Dimensions, types.Dimension{
			Name:  aws.String(name),
			Value: aws.String(value),
		})
	}

	result, err := c.client.GetMetricStatistics(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get metric statistics: %w", err)
	}

	metricResult := &MetricResult{
		Namespace:  params.Namespace,
		MetricName: params.MetricName,
		Dimensions: params.Dimensions,
		Statistic:  string(stat),
		Period:     params.Period,
		DataPoints: make([]MetricDataPoint, 0, len(result.Datapoints)),
	}

	for _, dp := range result.Datapoints {
		if dp.Timestamp == nil {
			continue
		}
		metricResult.DataPoints = append(metricResult.DataPoints, MetricDataPoint{
			Timestamp: dp.Timestamp.UTC(),
			Value:     datapointValue(dp, stat),
			Unit:      string(dp.Unit),
		})
	}

	slices.SortFunc(metricResult.DataPoints, func(a, b MetricDataPoint) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	return metricResult, nil
}

func datapointValue(dp types.Datapoint, stat types.Statistic) float64 {
	var v *float64
	switch stat {
	case types.StatisticSum:
		v = dp.Sum
	case types.StatisticAverage:
		v = dp.Average
	case types.StatisticMinimum:
		v = dp.Minimum
	case types.StatisticMaximum:
		v = dp.Maximum
	case types.StatisticSampleCount:
		v = dp.SampleCount
	}
	return aws.ToFloat64(v)
}

// ListMetrics lists available metrics, optionally filtered by namespace and name.
func (c *MetricsAPI) ListMetrics(ctx context.Context, namespace, metricName string) ([]MetricInfo, error) {
	var metrics []MetricInfo

	input := &cloudwatch.ListMetricsInput{}
	if namespace != "" {
		input.Namespace = aws.String(namespace)
	}
	if metricName != "" {
		input.MetricName = aws.String(metricName)
	}

	paginator := cloudwatch.NewListMetricsPaginator(c.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list metrics: %w", err)
		}

		for _, m := range page.Metrics {
			info := MetricInfo{
				Namespace:  aws.ToString(m.Namespace),
				MetricName: aws.ToString(m.MetricName),
				Dimensions: make(map[string]string, len(m.Dimensions)),
			}
			for _, d := range m.Dimensions {
				if d.Name != nil && d.Value != nil {
					info.Dimensions[*d.Name] = *d.Value
				}
			}
			metrics = append(metrics, info)
		}
	}

	return metrics, nil
}

// ParseStatistic maps a user-supplied statistic name (case-insensitive,
// with short aliases) to the AWS type. An empty name means Sum.
func ParseStatistic(s string) (types.Statistic, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sum":
		return types.StatisticSum, true
	case "average", "avg":
		return types.StatisticAverage, true
	case "minimum", "min":
		return types.StatisticMinimum, true
	case "maximum", "max":
		return types.StatisticMaximum, true
	case "samplecount", "count":
		return types.StatisticSampleCount, true
	default:
		return "", false
	}
}

// StatisticNames lists the accepted statistic names, used for suggestions.
func StatisticNames() []string {
	return []string{"Sum", "Average", "Minimum", "Maximum", "SampleCount"}
}

// CommonNamespaces returns a list of common AWS namespace prefixes.
func CommonNamespaces() []string {
	return []string{
		"AWS/ApplicationELB",
		"AWS/ApiGateway",
		"AWS/CloudFront",
		"AWS/DynamoDB",
		"AWS/EBS",
		"AWS/EC2",
		"AWS/ECS",
		"AWS/Lambda",
		"AWS/Logs",
		"AWS/RDS",
		"AWS/S3",
		"AWS/SQS",
	}
}

// ParseDimensions converts Name=Value pairs into a dimension map. A repeated
// name keeps the last value.
func ParseDimensions(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	dims := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid dimension format: %s (expected Name=Value)", p)
		}
		dims[name] = value
	}
	return dims, nil
}
