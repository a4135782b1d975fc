package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jmurray2011/hoard/internal/cloudwatch"
	"github.com/jmurray2011/hoard/pkg/timeutil"
)

const (
	defaultSince  = "1h"
	defaultPeriod = 5 * time.Minute
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// fail maps request errors to 400, a missing log group to 404 and
// everything else to 502.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case cloudwatch.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	s.log.Warn("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("%s must be an integer", name)
	}
	return n, nil
}

func queryRange(c *gin.Context) (time.Time, time.Time, error) {
	start, end, err := timeutil.ParseRange(c.DefaultQuery("since", defaultSince), c.Query("end"))
	if err != nil {
		return time.Time{}, time.Time{}, badRequest("%v", err)
	}
	return start, end, nil
}

func required(c *gin.Context, name string) (string, error) {
	v := c.Query(name)
	if v == "" {
		return "", badRequest("%s is required", name)
	}
	return v, nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listGroups(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		s.fail(c, err)
		return
	}
	groups, err := s.logs.ListLogGroups(c.Request.Context(), c.Query("prefix"), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(groups))
}

func (s *Server) listStreams(c *gin.Context) {
	group, err := required(c, "group")
	if err != nil {
		s.fail(c, err)
		return
	}
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		s.fail(c, err)
		return
	}
	streams, err := s.logs.ListStreams(c.Request.Context(), group, c.Query("prefix"), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(streams))
}

func (s *Server) query(c *gin.Context) {
	params, err := queryParams(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	results, err := s.logs.RunInsightsQuery(c.Request.Context(), params)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(results))
}

func queryParams(c *gin.Context) (cloudwatch.QueryParams, error) {
	group, err := required(c, "group")
	if err != nil {
		return cloudwatch.QueryParams{}, err
	}
	start, end, err := queryRange(c)
	if err != nil {
		return cloudwatch.QueryParams{}, err
	}
	limit, err := queryInt(c, "limit", cloudwatch.DefaultQueryLimit)
	if err != nil {
		return cloudwatch.QueryParams{}, err
	}
	if limit <= 0 {
		return cloudwatch.QueryParams{}, badRequest("limit must be positive")
	}

	q := c.Query("q")
	if q == "" {
		if c.Query("stats") == "true" {
			q = cloudwatch.BuildStatsQuery(c.Query("filter"), limit)
		} else {
			q = cloudwatch.BuildDefaultQuery(c.Query("filter"), limit)
		}
	}

	return cloudwatch.QueryParams{
		LogGroup:  group,
		StartTime: start,
		EndTime:   end,
		Query:     q,
		Limit:     limit,
	}, nil
}

func (s *Server) record(c *gin.Context) {
	ptr, err := required(c, "ptr")
	if err != nil {
		s.fail(c, err)
		return
	}
	rec, err := s.logs.GetLogRecord(c.Request.Context(), ptr)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) metricStats(c *gin.Context) {
	namespace, err := required(c, "namespace")
	if err != nil {
		s.fail(c, err)
		return
	}
	metric, err := required(c, "metric")
	if err != nil {
		s.fail(c, err)
		return
	}
	stat, ok := cloudwatch.ParseStatistic(c.Query("stat"))
	if !ok {
		s.fail(c, badRequest("unknown statistic %q (use one of %v)", c.Query("stat"), cloudwatch.StatisticNames()))
		return
	}
	dims, err := cloudwatch.ParseDimensions(c.QueryArray("dim"))
	if err != nil {
		s.fail(c, badRequest("%v", err))
		return
	}
	period := defaultPeriod
	if raw := c.Query("period"); raw != "" {
		period, err = timeutil.ParseDuration(raw)
		if err != nil || period < time.Second {
			s.fail(c, badRequest("invalid period %q", raw))
			return
		}
	}
	start, end, err := queryRange(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	result, err := s.metrics.GetMetricStatistics(c.Request.Context(), cloudwatch.MetricQueryParams{
		Namespace:  namespace,
		MetricName: metric,
		Dimensions: dims,
		Statistic:  string(stat),
		Period:     period,
		StartTime:  start,
		EndTime:    end,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) listMetrics(c *gin.Context) {
	metrics, err := s.metrics.ListMetrics(c.Request.Context(), c.Query("namespace"), c.Query("metric"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(metrics))
}

func (s *Server) cacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.cache.Stats())
}

func (s *Server) cacheKeys(c *gin.Context) {
	c.JSON(http.StatusOK, nonNil(s.cache.Keys()))
}

func (s *Server) purgeCache(c *gin.Context) {
	n := s.cache.Stats().Size
	s.cache.Purge()
	s.log.Info("purged %d entries", n)
	c.JSON(http.StatusOK, gin.H{"purged": n})
}

// CapacityRequest is the body of PUT /v1/cache/capacity.
type CapacityRequest struct {
	Capacity *int `json:"capacity"`
}

func (s *Server) resizeCache(c *gin.Context) {
	var req CapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Capacity == nil {
		s.fail(c, badRequest("body must be {\"capacity\": n}"))
		return
	}
	if *req.Capacity < -1 {
		s.fail(c, badRequest("capacity must be -1 (unbounded), 0 (disabled) or positive"))
		return
	}
	evicted := s.cache.Resize(*req.Capacity)
	c.JSON(http.StatusOK, gin.H{"capacity": *req.Capacity, "evicted": evicted})
}

// TTLRequest is the body of PUT /v1/cache/ttl. TTL is a Go duration string.
type TTLRequest struct {
	TTL string `json:"ttl"`
}

func (s *Server) setCacheTTL(c *gin.Context) {
	var req TTLRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TTL == "" {
		s.fail(c, badRequest("body must be {\"ttl\": \"5m\"}"))
		return
	}
	ttl, err := timeutil.ParseDuration(req.TTL)
	if err != nil || ttl < 0 {
		s.fail(c, badRequest("invalid ttl %q", req.TTL))
		return
	}
	s.cache.SetTTL(ttl)
	c.JSON(http.StatusOK, gin.H{"ttl": ttl.String()})
}

func (s *Server) evictKey(c *gin.Context) {
	key := c.Param("key")
	if !s.cache.Invalidate(key) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("key %q is not cached", key)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"evicted": key})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
