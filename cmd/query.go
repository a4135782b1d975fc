package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/jmurray2011/hoard/internal/cloudwatch"
	herrors "github.com/jmurray2011/hoard/internal/errors"
	"github.com/jmurray2011/hoard/pkg/timeutil"

	"github.com/spf13/cobra"
)

var (
	queryStart    string
	queryEnd      string
	queryFilter   string
	queryString   string
	queryLimit    int
	queryExport   string
	queryStats    bool
	queryShowURL  bool
	watchInterval int
)

var queryCmd = &cobra.Command{
	Use:   "query <log-group>",
	Short: "Run a Logs Insights query through the cache",
	Long: `Run a CloudWatch Logs Insights query. Results are cached; the same query
over the same window (time bounds are rounded to cache.key_resolution) is
answered from memory.

Supports both RFC3339 timestamps and relative time formats:
  - RFC3339: 2025-12-02T06:00:00Z
  - Relative: 2h (2 hours ago), 30m (30 minutes ago), 7d (7 days ago)

Examples:
  # Errors in the last two hours
  hoard query /app/api -s 2h -f "error"

  # Custom Insights query
  hoard query /app/api -q 'fields @timestamp, @message | filter status >= 500'

  # Match counts by 5 minute bucket
  hoard query /app/api -s 1d -f "timeout" --stats

  # Refresh every 10s
  hoard query /app/api -s 15m -f error --watch 10

  # Export results
  hoard query /app/api -s 1d -f "error" --export errors.json -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringVarP(&queryStart, "since", "s", "1h", "Start time - RFC3339 or relative (e.g., 2h, 30m, 7d)")
	queryCmd.Flags().StringVarP(&queryEnd, "end", "e", "now", "End time - RFC3339 or relative")
	queryCmd.Flags().StringVarP(&queryFilter, "filter", "f", "", "Regex filter for messages")
	queryCmd.Flags().StringVarP(&queryString, "query", "q", "", "Full Logs Insights query (overrides --filter)")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "l", cloudwatch.DefaultQueryLimit, "Max results to return")
	queryCmd.Flags().StringVar(&queryExport, "export", "", "Export results to file")
	queryCmd.Flags().BoolVar(&queryStats, "stats", false, "Show match count by time bucket instead of results")
	queryCmd.Flags().BoolVar(&queryShowURL, "url", false, "Show the AWS Console URL for this query")
	queryCmd.Flags().IntVar(&watchInterval, "watch", 0, "Re-run query every N seconds (0 = disabled)")
}

// queryRequest is everything needed to rebuild the query on each watch tick.
type queryRequest struct {
	group  string
	since  string
	end    string
	filter string
	query  string
	limit  int
	stats  bool
}

func (q queryRequest) params(now time.Time) (cloudwatch.QueryParams, error) {
	start, err := timeutil.ParseAt(q.since, now)
	if err != nil {
		return cloudwatch.QueryParams{}, herrors.InvalidTimeError(q.since)
	}
	end, err := timeutil.ParseAt(q.end, now)
	if err != nil {
		return cloudwatch.QueryParams{}, herrors.InvalidTimeError(q.end)
	}
	if !start.Before(end) {
		return cloudwatch.QueryParams{}, fmt.Errorf("start time must be before end time")
	}
	if q.limit <= 0 {
		return cloudwatch.QueryParams{}, fmt.Errorf("--limit must be positive")
	}

	query := q.query
	if query == "" {
		if q.stats {
			query = cloudwatch.BuildStatsQuery(q.filter, q.limit)
		} else {
			query = cloudwatch.BuildDefaultQuery(q.filter, q.limit)
		}
	}

	return cloudwatch.QueryParams{
		LogGroup:  q.group,
		StartTime: start,
		EndTime:   end,
		Query:     query,
		Limit:     q.limit,
	}, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	app, err := GetApp(cmd)
	if err != nil {
		return err
	}

	if queryFilter != "" {
		if _, err := regexp.Compile("(?i)" + queryFilter); err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	req := queryRequest{
		group:  args[0],
		since:  queryStart,
		end:    queryEnd,
		filter: queryFilter,
		query:  queryString,
		limit:  queryLimit,
		stats:  queryStats,
	}
	params, err := req.params(time.Now())
	if err != nil {
		return err
	}

	app.Debugf("Time range: %s to %s", params.StartTime.Format(time.RFC3339), params.EndTime.Format(time.RFC3339))
	for _, warning := range timeutil.ValidateTimeRange(params.StartTime, params.EndTime) {
		if warning.Level == "warning" {
			app.Render.Warning("%s", warning.Message)
		} else {
			app.Render.Status("%s", warning.Message)
		}
	}

	ctx := cmd.Context()
	logs, err := app.Logs(ctx)
	if err != nil {
		return err
	}

	app.Render.Status("Querying %s (%s)...", req.group, app.describeTarget())
	results, err := runGroupQuery(ctx, logs, params)
	if err != nil {
		return err
	}

	var writer io.Writer = app.Out()
	if queryExport != "" {
		f, err := os.Create(queryExport)
		if err != nil {
			return fmt.Errorf("failed to create export file: %w", err)
		}
		defer func() { _ = f.Close() }()
		writer = f
	}

	if err := writeQueryResults(app, writer, req, results); err != nil {
		return err
	}
	if queryExport != "" {
		app.Render.Success("Results exported to %s", queryExport)
	}

	if queryShowURL {
		app.Render.Newline()
		app.Render.Info("AWS Console URL:")
		app.Render.Info("  %s", buildConsoleURL(app.Config.Region, []string{req.group}, params.StartTime, params.EndTime, params.Query))
	}

	if watchInterval > 0 {
		return runWatchMode(ctx, app, logs, req)
	}
	return nil
}

// runGroupQuery runs params through logs and turns a missing log group into
// an error that lists similarly named groups.
func runGroupQuery(ctx context.Context, logs cloudwatch.LogsReader, params cloudwatch.QueryParams) ([]cloudwatch.LogResult, error) {
	results, err := logs.RunInsightsQuery(ctx, params)
	if err != nil {
		return nil, groupError(ctx, logs, params.LogGroup, err)
	}
	return results, nil
}

// groupError replaces a not-found error for group with one suggesting
// existing groups. Other errors are returned as is.
func groupError(ctx context.Context, logs cloudwatch.LogsReader, group string, err error) error {
	if !cloudwatch.IsNotFound(err) {
		return err
	}

	groups, listErr := logs.ListLogGroups(ctx, groupPrefix(group), 50)
	if listErr != nil {
		return err
	}
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
	}
	return herrors.LogGroupNotFoundError(group, names)
}

// groupPrefix returns the first path segment of a log group name, e.g.
// "/aws/" for "/aws/lambda/checkout", to narrow the suggestion lookup.
func groupPrefix(group string) string {
	trimmed := strings.TrimPrefix(group, "/")
	if i := strings.Index(trimmed, "/"); i >= 0 {
		return group[:len(group)-len(trimmed)+i+1]
	}
	return ""
}

func writeQueryResults(app *App, w io.Writer, req queryRequest, results []cloudwatch.LogResult) error {
	formatter := app.Formatter(w)
	if req.filter != "" && !req.stats {
		formatter.WithHighlight(req.filter)
	}
	return formatter.FormatResults(results)
}

// runWatchMode re-runs the query at the specified interval. Refreshes that
// land in the same key-resolution window are served from the cache.
func runWatchMode(ctx context.Context, app *App, logs cloudwatch.LogsReader, req queryRequest) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	app.Render.Newline()
	app.Render.Status("Watch mode: refreshing every %ds (Ctrl+C to stop)...", watchInterval)

	cache := app.Cache()
	for {
		select {
		case <-ctx.Done():
			app.Render.Info("\nWatch mode stopped.")
			return ctx.Err()
		case <-sigChan:
			app.Render.Info("\nWatch mode stopped.")
			return nil
		case <-ticker.C:
			params, err := req.params(time.Now())
			if err != nil {
				app.Render.Warning("%v", err)
				continue
			}

			hitsBefore := cache.Stats().Hits
			results, err := runGroupQuery(ctx, logs, params)
			if err != nil {
				app.Render.Warning("query failed: %v", err)
				continue
			}
			source := "fetched"
			if cache.Stats().Hits > hitsBefore {
				source = "cached"
			}

			// Clear screen and show timestamp
			fmt.Fprint(app.Out(), "\033[2J\033[H")
			app.Render.Status("Last updated: %s (%d results, %s)", time.Now().Format("15:04:05"), len(results), source)
			app.Render.Newline()

			if err := writeQueryResults(app, app.Out(), req, results); err != nil {
				app.Render.Warning("format error: %v", err)
			}
		}
	}
}

// buildConsoleURL generates a CloudWatch Logs Insights console URL.
func buildConsoleURL(region string, logGroups []string, start, end time.Time, query string) string {
	var sources []string
	for _, lg := range logGroups {
		sources = append(sources, "~'"+url.QueryEscape(lg))
	}

	queryDetail := fmt.Sprintf("~(end~%d~start~%d~timeType~'ABSOLUTE~editorString~'%s~source~(%s))",
		end.UnixMilli(),
		start.UnixMilli(),
		url.QueryEscape(query),
		strings.Join(sources, ""),
	)

	return fmt.Sprintf("https://%s.console.aws.amazon.com/cloudwatch/home?region=%s#logsV2:logs-insights$3FqueryDetail$3D%s",
		region,
		region,
		queryDetail,
	)
}
