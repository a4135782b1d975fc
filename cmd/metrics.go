package cmd

import (
	"fmt"
	"time"

	"github.com/jmurray2011/hoard/internal/cloudwatch"
	herrors "github.com/jmurray2011/hoard/internal/errors"
	"github.com/jmurray2011/hoard/pkg/timeutil"

	"github.com/spf13/cobra"
)

var (
	metricsNamespace  string
	metricsMetricName string
	metricsDimensions []string
	metricsStatistic  string
	metricsPeriod     string
	metricsStartTime  string
	metricsEndTime    string
	metricsList       bool
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Query CloudWatch Metrics through the cache",
	Long: `Query CloudWatch Metrics statistics to identify spikes and anomalies.

Time bounds are rounded to cache.key_resolution, so repeating a query over
the same window is answered from the cache.

Examples:
  # ALB 5XX errors over 24h
  hoard metrics -n AWS/ApplicationELB -m HTTPCode_ELB_5XX_Count -s 24h

  # With a specific period
  hoard metrics -n AWS/ApplicationELB -m HTTPCode_ELB_5XX_Count -s 24h --period 5m

  # With dimensions (filter to a specific resource)
  hoard metrics -n AWS/ApplicationELB -m HTTPCode_ELB_5XX_Count \
    -d LoadBalancer=app/my-alb/abc123 -s 24h

  # Lambda errors
  hoard metrics -n AWS/Lambda -m Errors --stat sum -s 7d --period 1h

  # List available metrics in a namespace
  hoard metrics --list -n AWS/ApplicationELB`,
	RunE: runMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)

	metricsCmd.Flags().StringVarP(&metricsNamespace, "namespace", "n", "", "CloudWatch namespace (e.g., AWS/ApplicationELB)")
	metricsCmd.Flags().StringVarP(&metricsMetricName, "metric", "m", "", "Metric name (e.g., HTTPCode_ELB_5XX_Count)")
	metricsCmd.Flags().StringArrayVarP(&metricsDimensions, "dimension", "d", nil, "Dimension filter (Name=Value), can be repeated")
	metricsCmd.Flags().StringVar(&metricsStatistic, "stat", "Sum", "Statistic: Sum, Average, Minimum, Maximum, SampleCount")
	metricsCmd.Flags().StringVar(&metricsPeriod, "period", "5m", "Period for data points (e.g., 1m, 5m, 1h, 1d)")
	metricsCmd.Flags().StringVarP(&metricsStartTime, "start", "s", "1h", "Start time (relative like 1h, 24h, 7d or RFC3339)")
	metricsCmd.Flags().StringVar(&metricsEndTime, "end", "", "End time (default: now)")
	metricsCmd.Flags().BoolVar(&metricsList, "list", false, "List available metrics instead of querying")

	_ = metricsCmd.RegisterFlagCompletionFunc("namespace", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return cloudwatch.CommonNamespaces(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = metricsCmd.RegisterFlagCompletionFunc("stat", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return cloudwatch.StatisticNames(), cobra.ShellCompDirectiveNoFileComp
	})
}

func runMetrics(cmd *cobra.Command, args []string) error {
	app, err := GetApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if metricsList {
		metrics, err := app.Metrics(ctx)
		if err != nil {
			return err
		}
		app.Render.Status("Listing metrics...")
		list, err := metrics.ListMetrics(ctx, metricsNamespace, metricsMetricName)
		if err != nil {
			return err
		}
		return app.Formatter(app.Out()).FormatMetricsList(list)
	}

	params, err := metricParams(time.Now())
	if err != nil {
		return err
	}

	metrics, err := app.Metrics(ctx)
	if err != nil {
		return err
	}

	app.Render.Status("Querying %s/%s...", params.Namespace, params.MetricName)
	result, err := metrics.GetMetricStatistics(ctx, params)
	if err != nil {
		return err
	}

	return app.Formatter(app.Out()).FormatMetricResult(result)
}

// metricParams validates the metrics flags.
func metricParams(now time.Time) (cloudwatch.MetricQueryParams, error) {
	if metricsNamespace == "" {
		return cloudwatch.MetricQueryParams{}, herrors.MissingFlagError("--namespace (-n)", []string{
			"hoard metrics -n AWS/Lambda -m Errors",
			"hoard metrics --list    - See available namespaces and metrics",
		})
	}
	if metricsMetricName == "" {
		return cloudwatch.MetricQueryParams{}, herrors.MissingFlagError("--metric (-m)", []string{
			fmt.Sprintf("hoard metrics -n %s -m <name>", metricsNamespace),
			fmt.Sprintf("hoard metrics --list -n %s", metricsNamespace),
		})
	}

	stat, ok := cloudwatch.ParseStatistic(metricsStatistic)
	if !ok {
		return cloudwatch.MetricQueryParams{}, herrors.UnknownStatisticError(metricsStatistic, cloudwatch.StatisticNames())
	}

	period, err := timeutil.ParseDuration(metricsPeriod)
	if err != nil || period < time.Second {
		return cloudwatch.MetricQueryParams{}, fmt.Errorf("invalid period %q (use e.g. 1m, 5m, 1h, 1d)", metricsPeriod)
	}

	dims, err := cloudwatch.ParseDimensions(metricsDimensions)
	if err != nil {
		return cloudwatch.MetricQueryParams{}, err
	}

	start, err := timeutil.ParseAt(metricsStartTime, now)
	if err != nil {
		return cloudwatch.MetricQueryParams{}, herrors.InvalidTimeError(metricsStartTime)
	}
	end, err := timeutil.ParseAt(metricsEndTime, now)
	if err != nil {
		return cloudwatch.MetricQueryParams{}, herrors.InvalidTimeError(metricsEndTime)
	}
	if !start.Before(end) {
		return cloudwatch.MetricQueryParams{}, fmt.Errorf("start time must be before end time")
	}

	return cloudwatch.MetricQueryParams{
		Namespace:  metricsNamespace,
		MetricName: metricsMetricName,
		Dimensions: dims,
		Statistic:  string(stat),
		Period:     period,
		StartTime:  start,
		EndTime:    end,
	}, nil
}
