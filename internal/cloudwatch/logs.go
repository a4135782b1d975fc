package cloudwatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

// Configuration constants for CloudWatch Logs operations
const (
	// QueryTimeout is the maximum time to wait for a Logs Insights query to complete
	QueryTimeout = 60 * time.Second

	// QueryPollInterval is how often to check for query completion
	QueryPollInterval = 500 * time.Millisecond

	// DefaultQueryLimit applies when a query does not set a limit
	DefaultQueryLimit = 100
)

// LogsReader is the read-only CloudWatch Logs surface served through the cache.
type LogsReader interface {
	ListLogGroups(ctx context.Context, prefix string, limit int) ([]LogGroupInfo, error)
	ListStreams(ctx context.Context, logGroup, prefix string, limit int) ([]StreamInfo, error)
	RunInsightsQuery(ctx context.Context, params QueryParams) ([]LogResult, error)
	GetLogRecord(ctx context.Context, ptr string) (LogResult, error)
}

// EventFilterer is the polling call used by Tail.
type EventFilterer interface {
	FilterLogEvents(ctx context.Context, logGroup, filter string, startTime, endTime time.Time) ([]TailEvent, error)
}

// Client wraps the CloudWatch Logs client with convenience methods.
type Client struct {
	client *cloudwatchlogs.Client
}

var (
	_ LogsReader    = (*Client)(nil)
	_ EventFilterer = (*Client)(nil)
)

// NewClient creates a new Client wrapper from an SDK client.
func NewClient(client *cloudwatchlogs.Client) *Client {
	return &Client{client: client}
}

// QueryParams holds parameters for running a Logs Insights query.
type QueryParams struct {
	LogGroup  string    `json:"logGroup"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Query     string    `json:"query"`
	Limit     int       `json:"limit"`
}

// LogResult is a single row returned by a query or a record lookup.
type LogResult struct {
	Timestamp time.Time         `json:"timestamp"`
	LogStream string            `json:"logStream,omitempty"`
	Message   string            `json:"message,omitempty"`
	Ptr       string            `json:"ptr,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// StreamInfo represents information about a log stream.
type StreamInfo struct {
	Name           string    `json:"name"`
	LastEventTime  time.Time `json:"lastEventTime"`
	FirstEventTime time.Time `json:"firstEventTime"`
}

// LogGroupInfo represents information about a log group.
type LogGroupInfo struct {
	Name          string    `json:"name"`
	StoredBytes   int64     `json:"storedBytes"`
	CreationTime  time.Time `json:"creationTime"`
	RetentionDays int       `json:"retentionDays,omitempty"`
}

// TailEvent represents a log event from FilterLogEvents.
type TailEvent struct {
	Timestamp time.Time `json:"timestamp"`
	LogStream string    `json:"logStream"`
	Message   string    `json:"message"`
}

func groupInfo(g types.LogGroup) LogGroupInfo {
	group := LogGroupInfo{Name: aws.ToString(g.LogGroupName)}
	if g.StoredBytes != nil {
		group.StoredBytes = *g.StoredBytes
	}
	if g.CreationTime != nil {
		group.CreationTime = time.UnixMilli(*g.CreationTime).UTC()
	}
	if g.RetentionInDays != nil {
		group.RetentionDays = int(*g.RetentionInDays)
	}
	return group
}

// IsNotFound reports whether err is AWS saying the log group or stream
// does not exist.
func IsNotFound(err error) bool {
	var nf *types.ResourceNotFoundException
	return errors.As(err, &nf)
}

// ListLogGroups returns up to limit log groups, optionally filtered by prefix.
func (c *Client) ListLogGroups(ctx context.Context, prefix string, limit int) ([]LogGroupInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	input := &cloudwatchlogs.DescribeLogGroupsInput{
		Limit: aws.Int32(int32(min(limit, 50))),
	}
	if prefix != "" {
		input.LogGroupNamePrefix = &prefix
	}

	var groups []LogGroupInfo

	paginator := cloudwatchlogs.NewDescribeLogGroupsPaginator(c.client, input)
	for paginator.HasMorePages() && len(groups) < limit {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe log groups: %w", err)
		}
		for _, g := range page.LogGroups {
			if len(groups) >= limit {
				break
			}
			groups = append(groups, groupInfo(g))
		}
	}

	return groups, nil
}

// ListStreams returns the most recently written streams of a log group.
func (c *Client) ListStreams(ctx context.Context, logGroup, prefix string, limit int) ([]StreamInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	input := &cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName: &logGroup,
		Limit:        aws.Int32(int32(min(limit, 50))),
		Descending:   aws.Bool(true),
	}

	// CloudWatch rejects a name prefix combined with LastEventTime ordering
	if prefix != "" {
		input.LogStreamNamePrefix = &prefix
		input.OrderBy = types.OrderByLogStreamName
	} else {
		input.OrderBy = types.OrderByLastEventTime
	}

	result, err := c.client.DescribeLogStreams(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to describe log streams: %w", err)
	}

	streams := make([]StreamInfo, 0, len(result.LogStreams))
	for _, s := range result.LogStreams {
		stream := StreamInfo{Name: aws.ToString(s.LogStreamName)}
		if s.LastEventTimestamp != nil {
			stream.LastEventTime = time.UnixMilli(*s.LastEventTimestamp).UTC()
		}
		if s.FirstEventTimestamp != nil {
			stream.FirstEventTime = time.UnixMilli(*s.FirstEventTimestamp).UTC()
		}
		streams = append(streams, stream)
	}

	return streams, nil
}

// FilterLogEvents returns log events matching a filter pattern (for tailing).
func (c *Client) FilterLogEvents(ctx context.Context, logGroup, filter string, startTime, endTime time.Time) ([]TailEvent, error) {
	input := &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName: &logGroup,
		StartTime:    aws.Int64(startTime.UnixMilli()),
		EndTime:      aws.Int64(endTime.UnixMilli()),
		Limit:        aws.Int32(100),
	}
	if pattern := convertToFilterPattern(filter); pattern != "" {
		input.FilterPattern = &pattern
	}

	result, err := c.client.FilterLogEvents(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to filter log events: %w", err)
	}

	var events []TailEvent
	for _, e := range result.Events {
		if e.Timestamp == nil || e.Message == nil {
			continue
		}
		events = append(events, TailEvent{
			Timestamp: time.UnixMilli(*e.Timestamp).UTC(),
			LogStream: aws.ToString(e.LogStreamName),
			Message:   *e.Message,
		})
	}

	return events, nil
}

// convertToFilterPattern turns "error|exception" into the CloudWatch OR
// syntax `?"error" ?"exception"`. Anything without a pipe passes through.
func convertToFilterPattern(filter string) string {
	if !strings.Contains(filter, "|") {
		return filter
	}

	var terms []string
	for _, p := range strings.Split(filter, "|") {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			terms = append(terms, `?"`+p+`"`)
		}
	}
	return strings.Join(terms, " ")
}

// RunInsightsQuery executes a Logs Insights query and waits for its results.
func (c *Client) RunInsightsQuery(ctx context.Context, params QueryParams) ([]LogResult, error) {
	query := params.Query
	if query == "" {
		query = BuildDefaultQuery("", params.Limit)
	}
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	startQuery, err := c.client.StartQuery(ctx, &cloudwatchlogs.StartQueryInput{
		LogGroupName: &params.LogGroup,
		StartTime:    aws.Int64(params.StartTime.Unix()),
		EndTime:      aws.Int64(params.EndTime.Unix()),
		QueryString:  &query,
		Limit:        aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start query: %w", err)
	}

	timeout := time.After(QueryTimeout)
	ticker := time.NewTicker(QueryPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return nil, fmt.Errorf("query did not complete within %v", QueryTimeout)
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			result, err := c.client.GetQueryResults(ctx, &cloudwatchlogs.GetQueryResultsInput{
				QueryId: startQuery.QueryId,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to get query results: %w", err)
			}

			switch result.Status {
			case types.QueryStatusComplete:
				return parseResults(result.Results), nil
			case types.QueryStatusFailed:
				return nil, fmt.Errorf("query failed")
			case types.QueryStatusCancelled:
				return nil, fmt.Errorf("query was cancelled")
			case types.QueryStatusTimeout:
				return nil, fmt.Errorf("query timed out on AWS side")
			}
		}
	}
}

func parseResults(rows [][]types.ResultField) []LogResult {
	results := make([]LogResult, 0, len(rows))
	for _, row := range rows {
		fields := make(map[string]string, len(row))
		for _, field := range row {
			if field.Field == nil || field.Value == nil {
				continue
			}
			fields[*field.Field] = *field.Value
		}
		results = append(results, resultFromFields(fields))
	}
	return results
}

// resultFromFields lifts the well-known @ fields out of a result row.
func resultFromFields(fields map[string]string) LogResult {
	r := LogResult{
		LogStream: fields["@logStream"],
		Message:   fields["@message"],
		Ptr:       fields["@ptr"],
		Fields:    fields,
	}
	if ts, ok := fields["@timestamp"]; ok {
		if t, err := parseLogTimestamp(ts); err == nil {
			r.Timestamp = t
		}
	}
	return r
}

// GetLogRecord retrieves a single log record by its @ptr value.
func (c *Client) GetLogRecord(ctx context.Context, ptr string) (LogResult, error) {
	result, err := c.client.GetLogRecord(ctx, &cloudwatchlogs.GetLogRecordInput{
		LogRecordPointer: &ptr,
	})
	if err != nil {
		return LogResult{}, fmt.Errorf("failed to get log record: %w", err)
	}

	fields := make(map[string]string, len(result.LogRecord))
	for k, v := range result.LogRecord {
		fields[k] = v
	}
	r := resultFromFields(fields)
	if r.Ptr == "" {
		r.Ptr = ptr
	}
	return r, nil
}

// parseLogTimestamp parses the timestamp formats CloudWatch Logs returns.
func parseLogTimestamp(input string) (time.Time, error) {
	formats := []string{
		"2006-01-02 15:04:05.000", // Logs Insights
		"2006-01-02 15:04:05",
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, input); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", input)
}

// BuildDefaultQuery creates a Logs Insights query returning the newest
// matching messages. An empty filter matches everything.
func BuildDefaultQuery(filter string, limit int) string {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	if filter == "" {
		return fmt.Sprintf(`fields @timestamp, @message, @logStream, @ptr
| sort @timestamp desc
| limit %d`, limit)
	}

	return fmt.Sprintf(`fields @timestamp, @message, @logStream, @ptr
| filter @message like /(?i)(%s)/
| sort @timestamp desc
| limit %d`, filter, limit)
}

// BuildStatsQuery creates a Logs Insights query that returns counts by time bucket.
func BuildStatsQuery(filter string, limit int) string {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	if filter == "" {
		return fmt.Sprintf(`fields @timestamp, @message
| stats count() as count by bin(5m) as time_bucket
| sort time_bucket desc
| limit %d`, limit)
	}

	return fmt.Sprintf(`fields @timestamp, @message
| filter @message like /(?i)(%s)/
| stats count() as count by bin(5m) as time_bucket
| sort time_bucket desc
| limit %d`, filter, limit)
}
