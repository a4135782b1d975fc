package cloudwatch

import (
	"context"
	"fmt"
	"time"

	"github.com/jmurray2011/hoard/internal/logging"
	"github.com/jmurray2011/hoard/internal/reqcache"
)

// DefaultKeyResolution is the granularity request time bounds are truncated
// to before they become part of a cache key.
const DefaultKeyResolution = time.Minute

// Cache namespaces, one per read operation.
const (
	NamespaceGroups  = "groups"
	NamespaceStreams = "streams"
	NamespaceQuery   = "query"
	NamespaceRecord  = "record"
	NamespaceStats   = "metric-stats"
	NamespaceList    = "metric-list"
)

// CacheOptions configures the cached readers.
type CacheOptions struct {
	// KeyResolution truncates request time bounds. Zero means DefaultKeyResolution,
	// a negative value disables truncation.
	KeyResolution time.Duration

	Logger logging.Logger
}

func (o CacheOptions) resolution() time.Duration {
	if o.KeyResolution == 0 {
		return DefaultKeyResolution
	}
	return o.KeyResolution
}

func (o CacheOptions) logger() logging.Logger {
	if o.Logger == nil {
		return logging.Default()
	}
	return o.Logger
}

// truncate rounds t down to res. The result is in UTC so the same instant
// always encodes the same way.
func truncate(t time.Time, res time.Duration) time.Time {
	if t.IsZero() {
		return t
	}
	if res > 0 {
		t = t.Truncate(res)
	}
	return t.UTC()
}

// roundUp rounds t up to the next multiple of res. Times already on a
// boundary are kept.
func roundUp(t time.Time, res time.Duration) time.Time {
	down := truncate(t, res)
	if res <= 0 || down.Equal(t) {
		return down
	}
	return down.Add(res)
}

// widen snaps [start, end] outward to res, so the window sent upstream always
// covers the one the caller asked for.
func widen(start, end time.Time, res time.Duration) (time.Time, time.Time) {
	return truncate(start, res), roundUp(end, res)
}

// cached looks req up in c under namespace ns and calls fn on a miss.
func cached[T any](ctx context.Context, c *reqcache.Cache[any], log logging.Logger, ns string, req any, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	key, err := reqcache.Key(ns, req)
	if err != nil {
		return zero, err
	}

	v, hit, err := c.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	log.Debug("%s %s hit=%t", ns, key, hit)

	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache entry %s holds %T", key, v)
	}
	return out, nil
}

// CachedLogs serves a LogsReader through a request cache.
type CachedLogs struct {
	next  LogsReader
	cache *reqcache.Cache[any]
	res   time.Duration
	log   logging.Logger
}

var _ LogsReader = (*CachedLogs)(nil)

// NewCachedLogs wraps next with cache.
func NewCachedLogs(next LogsReader, cache *reqcache.Cache[any], opts CacheOptions) *CachedLogs {
	return &CachedLogs{
		next:  next,
		cache: cache,
		res:   opts.resolution(),
		log:   opts.logger().WithField("component", "cached-logs"),
	}
}

type groupsRequest struct {
	Prefix string `json:"prefix"`
	Limit  int    `json:"limit"`
}

func (c *CachedLogs) ListLogGroups(ctx context.Context, prefix string, limit int) ([]LogGroupInfo, error) {
	return cached(ctx, c.cache, c.log, NamespaceGroups, groupsRequest{prefix, limit}, func(ctx context.Context) ([]LogGroupInfo, error) {
		return c.next.ListLogGroups(ctx, prefix, limit)
	})
}

type streamsRequest struct {
	LogGroup string `json:"logGroup"`
	Prefix   string `json:"prefix"`
	Limit    int    `json:"limit"`
}

func (c *CachedLogs) ListStreams(ctx context.Context, logGroup, prefix string, limit int) ([]StreamInfo, error) {
	return cached(ctx, c.cache, c.log, NamespaceStreams, streamsRequest{logGroup, prefix, limit}, func(ctx context.Context) ([]StreamInfo, error) {
		return c.next.ListStreams(ctx, logGroup, prefix, limit)
	})
}

// RunInsightsQuery widens the time range outward to the key resolution and
// runs the widened query, so the cached rows match the key they are stored
// under and never miss the newest part of the requested window.
func (c *CachedLogs) RunInsightsQuery(ctx context.Context, params QueryParams) ([]LogResult, error) {
	params.StartTime, params.EndTime = widen(params.StartTime, params.EndTime, c.res)

	return cached(ctx, c.cache, c.log, NamespaceQuery, params, func(ctx context.Context) ([]LogResult, error) {
		return c.next.RunInsightsQuery(ctx, params)
	})
}

type recordRequest struct {
	Ptr string `json:"ptr"`
}

func (c *CachedLogs) GetLogRecord(ctx context.Context, ptr string) (LogResult, error) {
	return cached(ctx, c.cache, c.log, NamespaceRecord, recordRequest{ptr}, func(ctx context.Context) (LogResult, error) {
		return c.next.GetLogRecord(ctx, ptr)
	})
}

// CachedMetrics serves a MetricsReader through a request cache.
type CachedMetrics struct {
	next  MetricsReader
	cache *reqcache.Cache[any]
	res   time.Duration
	log   logging.Logger
}

var _ MetricsReader = (*CachedMetrics)(nil)

// NewCachedMetrics wraps next with cache.
func NewCachedMetrics(next MetricsReader, cache *reqcache.Cache[any], opts CacheOptions) *CachedMetrics {
	return &CachedMetrics{
		next:  next,
		cache: cache,
		res:   opts.resolution(),
		log:   opts.logger().WithField("component", "cached-metrics"),
	}
}

func (c *CachedMetrics) GetMetricStatistics(ctx context.Context, params MetricQueryParams) (*MetricResult, error) {
	params.StartTime, params.EndTime = widen(params.StartTime, params.EndTime, c.res)
	if stat, ok := ParseStatistic(params.Statistic); ok {
		params.Statistic = string(stat)
	}

	return cached(ctx, c.cache, c.log, NamespaceStats, params, func(ctx context.Context) (*MetricResult, error) {
		return c.next.GetMetricStatistics(ctx, params)
	})
}

type listMetricsRequest struct {
	Namespace  string `json:"namespace"`
	MetricName string `json:"metricName"`
}

func (c *CachedMetrics) ListMetrics(ctx context.Context, namespace, metricName string) ([]MetricInfo, error) {
	return cached(ctx, c.cache, c.log, NamespaceList, listMetricsRequest{namespace, metricName}, func(ctx context.Context) ([]MetricInfo, error) {
		return c.next.ListMetrics(ctx, namespace, metricName)
	})
}
