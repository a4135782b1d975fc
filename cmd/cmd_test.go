package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmurray2011/hoard/internal/cloudwatch"
	"github.com/jmurray2011/hoard/internal/config"
	herrors "github.com/jmurray2011/hoard/internal/errors"
	"github.com/jmurray2011/hoard/internal/logging"
	"github.com/jmurray2011/hoard/internal/server"
	"github.com/jmurray2011/hoard/internal/ui"
)

type fakeLogs struct {
	mu      sync.Mutex
	queries int
	missing map[string]bool
	groups  []string
}

func (f *fakeLogs) ListLogGroups(ctx context.Context, prefix string, limit int) ([]cloudwatch.LogGroupInfo, error) {
	var out []cloudwatch.LogGroupInfo
	for _, g := range f.groups {
		if strings.HasPrefix(g, prefix) {
			out = append(out, cloudwatch.LogGroupInfo{Name: g})
		}
	}
	return out, nil
}

func (f *fakeLogs) ListStreams(ctx context.Context, logGroup, prefix string, limit int) ([]cloudwatch.StreamInfo, error) {
	if f.missing[logGroup] {
		return nil, notFound(logGroup)
	}
	return []cloudwatch.StreamInfo{{Name: "i-0abc"}}, nil
}

func (f *fakeLogs) RunInsightsQuery(ctx context.Context, params cloudwatch.QueryParams) ([]cloudwatch.LogResult, error) {
	if f.missing[params.LogGroup] {
		return nil, notFound(params.LogGroup)
	}
	f.mu.Lock()
	f.queries++
	f.mu.Unlock()
	return []cloudwatch.LogResult{{
		Timestamp: time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC),
		LogStream: "i-0abc",
		Message:   "connection timeout",
		Ptr:       "ptr-1",
	}}, nil
}

func (f *fakeLogs) GetLogRecord(ctx context.Context, ptr string) (cloudwatch.LogResult, error) {
	return cloudwatch.LogResult{Ptr: ptr, Fields: map[string]string{"@message": "hello"}}, nil
}

func (f *fakeLogs) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

func notFound(group string) error {
	return fmt.Errorf("operation error CloudWatch Logs: %w", &types.ResourceNotFoundException{
		Message: aws.String("The specified log group does not exist: " + group),
	})
}

type fakeMetrics struct{}

func (fakeMetrics) GetMetricStatistics(ctx context.Context, params cloudwatch.MetricQueryParams) (*cloudwatch.MetricResult, error) {
	return &cloudwatch.MetricResult{Namespace: params.Namespace, MetricName: params.MetricName}, nil
}

func (fakeMetrics) ListMetrics(ctx context.Context, namespace, metricName string) ([]cloudwatch.MetricInfo, error) {
	return nil, nil
}

type fakeFilterer struct{}

func (fakeFilterer) FilterLogEvents(ctx context.Context, logGroup, filter string, startTime, endTime time.Time) ([]cloudwatch.TailEvent, error) {
	return []cloudwatch.TailEvent{
		{Timestamp: time.Now(), LogStream: "s1", Message: "ERROR disk full"},
		{Timestamp: time.Now(), LogStream: "s1", Message: "ok"},
	}, nil
}

// testApp returns an App backed by fakes that writes results to out.
func testApp(t *testing.T, format string) (*App, *fakeLogs, *bytes.Buffer) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Output = format

	out := &bytes.Buffer{}
	app := NewAppWithConfig(&cfg, ui.NewRendererWithOptions(
		ui.WithOutput(out),
		ui.WithError(&bytes.Buffer{}),
		ui.WithNoColor(true),
	))
	app.NoColor = true
	app.Log = logging.NopLogger{}

	logs := &fakeLogs{groups: []string{"/app/api", "/app/web", "/aws/lambda/checkout"}}
	app.logs = cloudwatch.NewCachedLogs(logs, app.Cache(), app.cacheOptions())
	app.metrics = cloudwatch.NewCachedMetrics(fakeMetrics{}, app.Cache(), app.cacheOptions())
	app.tailer = fakeFilterer{}
	app.accountID = "123456789012"
	return app, logs, out
}

func commandWith(app *App) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(SetApp(context.Background(), app))
	return cmd
}

func TestBuildConsoleURL(t *testing.T) {
	tests := []struct {
		name      string
		region    string
		logGroups []string
		start     time.Time
		end       time.Time
		query     string
		checks    []string // strings that should be in the URL
	}{
		{
			name:      "basic URL",
			region:    "us-east-1",
			logGroups: []string{"/app/logs"},
			start:     time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
			end:       time.Date(2025, 12, 2, 0, 0, 0, 0, time.UTC),
			query:     "fields @message",
			checks: []string{
				"us-east-1.console.aws.amazon.com",
				"cloudwatch",
				"logs-insights",
			},
		},
		{
			name:      "multiple log groups",
			region:    "eu-west-1",
			logGroups: []string{"/app/api", "/app/web"},
			start:     time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
			end:       time.Date(2025, 12, 2, 0, 0, 0, 0, time.UTC),
			query:     "",
			checks: []string{
				"eu-west-1.console.aws.amazon.com",
				"%2Fapp%2Fapi",
				"%2Fapp%2Fweb",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildConsoleURL(tt.region, tt.logGroups, tt.start, tt.end, tt.query)
			for _, check := range tt.checks {
				if !strings.Contains(got, check) {
					t.Errorf("buildConsoleURL() = %q, should contain %q", got, check)
				}
			}
		})
	}
}

func TestNewAppWithConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Profile = "test-profile"
	cfg.Region = "us-west-2"

	app := NewAppWithConfig(&cfg, nil)

	if app.Config.Profile != "test-profile" {
		t.Errorf("expected profile 'test-profile', got %q", app.Config.Profile)
	}
	if app.Render == nil {
		t.Error("expected a default renderer")
	}
	if got := app.describeTarget(); got != "test-profile/us-west-2" {
		t.Errorf("describeTarget() = %q, want 'test-profile/us-west-2'", got)
	}

	cfg.Profile = ""
	if got := app.describeTarget(); got != "us-west-2" {
		t.Errorf("describeTarget() = %q, want 'us-west-2'", got)
	}
}

func TestSetAndGetApp(t *testing.T) {
	cfg := config.Defaults()
	cfg.Profile = "context-test"
	app := NewAppWithConfig(&cfg, nil)

	retrieved, err := GetApp(commandWith(app))
	if err != nil {
		t.Fatalf("GetApp() error = %v", err)
	}
	if retrieved != app {
		t.Error("expected the App stored in the context")
	}
}

func TestAppCacheIsShared(t *testing.T) {
	app, _, _ := testApp(t, "text")
	if app.Cache() != app.Cache() {
		t.Error("expected one cache per App")
	}
	if got := app.Cache().Stats().Capacity; got != 1024 {
		t.Errorf("capacity = %d, want 1024", got)
	}
}

func TestAppTailerIsRemembered(t *testing.T) {
	app, _, _ := testApp(t, "text")
	got, err := app.Tailer(context.Background())
	if err != nil {
		t.Fatalf("Tailer() error: %v", err)
	}
	if _, ok := got.(fakeFilterer); !ok {
		t.Errorf("Tailer() = %T, want the injected filterer", got)
	}

	app.tailer = nil
	app.session = &cloudwatch.Session{}
	first, err := app.Tailer(context.Background())
	if err != nil {
		t.Fatalf("Tailer() error: %v", err)
	}
	second, _ := app.Tailer(context.Background())
	if first != second {
		t.Error("expected the session filterer to be reused")
	}
}

func TestCompleteLogGroups(t *testing.T) {
	app, _, _ := testApp(t, "text")
	cmd := commandWith(app)

	names, directive := completeLogGroups(cmd, nil, "/app/")
	if directive != cobra.ShellCompDirectiveNoFileComp {
		t.Errorf("directive = %v, want NoFileComp", directive)
	}
	if !slices.Equal(names, []string{"/app/api", "/app/web"}) {
		t.Errorf("names = %v, want [/app/api /app/web]", names)
	}

	// the second lookup is served from the cache
	completeLogGroups(cmd, nil, "/app/")
	if hits := app.Cache().Stats().Hits; hits != 1 {
		t.Errorf("cache hits = %d, want 1", hits)
	}

	if names, _ := completeLogGroups(cmd, []string{"/app/api"}, ""); names != nil {
		t.Errorf("expected no suggestions after the group argument, got %v", names)
	}
}

func TestNewRequestCache(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		want     int
		stores   bool
	}{
		{"bounded", 8, 8, true},
		{"unbounded", -1, -1, true},
		{"disabled", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newRequestCache(config.CacheConfig{Capacity: tt.capacity, TTL: time.Minute}, logging.NopLogger{})
			if got := c.Stats().Capacity; got != tt.want {
				t.Errorf("capacity = %d, want %d", got, tt.want)
			}
			c.Put("k", 1)
			if _, ok := c.Get("k"); ok != tt.stores {
				t.Errorf("Get after Put = %v, want %v", ok, tt.stores)
			}
		})
	}
}

func TestQueryRequestParams(t *testing.T) {
	now := time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC)

	t.Run("relative window with filter", func(t *testing.T) {
		p, err := queryRequest{group: "/app/api", since: "2h", end: "now", filter: "timeout", limit: 50}.params(now)
		if err != nil {
			t.Fatalf("params() error = %v", err)
		}
		if !p.StartTime.Equal(now.Add(-2 * time.Hour)) {
			t.Errorf("StartTime = %v", p.StartTime)
		}
		if !p.EndTime.Equal(now) {
			t.Errorf("EndTime = %v", p.EndTime)
		}
		if p.Query != cloudwatch.BuildDefaultQuery("timeout", 50) {
			t.Errorf("Query = %q", p.Query)
		}
		if p.LogGroup != "/app/api" || p.Limit != 50 {
			t.Errorf("unexpected params %+v", p)
		}
	})

	t.Run("stats query", func(t *testing.T) {
		p, err := queryRequest{group: "/app/api", since: "1h", end: "now", filter: "x", limit: 10, stats: true}.params(now)
		if err != nil {
			t.Fatalf("params() error = %v", err)
		}
		if p.Query != cloudwatch.BuildStatsQuery("x", 10) {
			t.Errorf("Query = %q", p.Query)
		}
	})

	t.Run("explicit query wins", func(t *testing.T) {
		p, err := queryRequest{group: "/app/api", since: "1h", end: "now", filter: "x", query: "fields @message", limit: 10, stats: true}.params(now)
		if err != nil {
			t.Fatalf("params() error = %v", err)
		}
		if p.Query != "fields @message" {
			t.Errorf("Query = %q", p.Query)
		}
	})

	errCases := []struct {
		name string
		req  queryRequest
	}{
		{"bad since", queryRequest{since: "yesterday", end: "now", limit: 1}},
		{"bad end", queryRequest{since: "1h", end: "later", limit: 1}},
		{"start after end", queryRequest{since: "1h", end: "2h", limit: 1}},
		{"zero limit", queryRequest{since: "1h", end: "now", limit: 0}},
	}
	for _, tt := range errCases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.req.params(now); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestGroupPrefix(t *testing.T) {
	tests := []struct {
		group string
		want  string
	}{
		{"/aws/lambda/checkout", "/aws/"},
		{"/app", ""},
		{"app/api", "app/"},
		{"plain", ""},
	}
	for _, tt := range tests {
		if got := groupPrefix(tt.group); got != tt.want {
			t.Errorf("groupPrefix(%q) = %q, want %q", tt.group, got, tt.want)
		}
	}
}

func TestGroupErrorSuggestsSimilarGroups(t *testing.T) {
	logs := &fakeLogs{groups: []string{"/app/api", "/app/web"}}

	err := groupError(context.Background(), logs, "/app/apii", notFound("/app/apii"))
	var se *herrors.SuggestiveError
	if !errors.As(err, &se) {
		t.Fatalf("expected SuggestiveError, got %v", err)
	}
	if !strings.Contains(err.Error(), "/app/api") {
		t.Errorf("expected suggestion for /app/api, got %q", err.Error())
	}

	other := errors.New("throttled")
	if got := groupError(context.Background(), logs, "/app/api", other); got != other {
		t.Errorf("expected other errors to pass through, got %v", got)
	}
}

func TestRunQueryUsesCache(t *testing.T) {
	app, logs, out := testApp(t, "json")

	queryStart, queryEnd, queryLimit = "1h", "now", 10
	queryFilter, queryString, queryExport = "timeout", "", ""
	queryStats, queryShowURL, watchInterval = false, false, 0

	cmd := commandWith(app)
	for i := 0; i < 2; i++ {
		if err := runQuery(cmd, []string{"/app/api"}); err != nil {
			t.Fatalf("runQuery() error = %v", err)
		}
	}

	if logs.queryCount() != 1 {
		t.Errorf("upstream queries = %d, want 1", logs.queryCount())
	}
	if hits := app.Cache().Stats().Hits; hits != 1 {
		t.Errorf("cache hits = %d, want 1", hits)
	}
	if !strings.Contains(out.String(), "connection timeout") {
		t.Errorf("expected result in output, got %q", out.String())
	}
}

func TestRunQueryMissingGroup(t *testing.T) {
	app, logs, _ := testApp(t, "text")
	logs.missing = map[string]bool{"/app/apii": true}

	queryStart, queryEnd, queryLimit = "1h", "now", 10
	queryFilter, queryString, queryExport = "", "", ""
	queryStats, queryShowURL, watchInterval = false, false, 0

	err := runQuery(commandWith(app), []string{"/app/apii"})
	if err == nil || !strings.Contains(err.Error(), "/app/api") {
		t.Errorf("expected suggestion error, got %v", err)
	}
	for _, k := range app.Cache().Keys() {
		if strings.HasPrefix(k, cloudwatch.NamespaceQuery+":") {
			t.Errorf("failed query was cached as %s", k)
		}
	}
}

func TestRunQueryRejectsBadFilter(t *testing.T) {
	app, _, _ := testApp(t, "text")
	queryStart, queryEnd, queryLimit = "1h", "now", 10
	queryFilter = "(unclosed"
	defer func() { queryFilter = "" }()

	if err := runQuery(commandWith(app), []string{"/app/api"}); err == nil {
		t.Error("expected invalid filter error")
	}
}

func TestMetricParams(t *testing.T) {
	now := time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC)
	reset := func() {
		metricsNamespace, metricsMetricName = "AWS/Lambda", "Errors"
		metricsStatistic, metricsPeriod = "sum", "5m"
		metricsStartTime, metricsEndTime = "24h", ""
		metricsDimensions = []string{"FunctionName=checkout"}
	}

	reset()
	p, err := metricParams(now)
	if err != nil {
		t.Fatalf("metricParams() error = %v", err)
	}
	if p.Statistic != "Sum" || p.Period != 5*time.Minute {
		t.Errorf("unexpected params %+v", p)
	}
	if p.Dimensions["FunctionName"] != "checkout" {
		t.Errorf("Dimensions = %v", p.Dimensions)
	}
	if !p.StartTime.Equal(now.Add(-24 * time.Hour)) {
		t.Errorf("StartTime = %v", p.StartTime)
	}

	errCases := []struct {
		name  string
		setup func()
	}{
		{"missing namespace", func() { metricsNamespace = "" }},
		{"missing metric", func() { metricsMetricName = "" }},
		{"unknown stat", func() { metricsStatistic = "median" }},
		{"bad period", func() { metricsPeriod = "soon" }},
		{"sub-second period", func() { metricsPeriod = "0s" }},
		{"bad dimension", func() { metricsDimensions = []string{"FunctionName"} }},
		{"bad start", func() { metricsStartTime = "whenever" }},
	}
	for _, tt := range errCases {
		t.Run(tt.name, func(t *testing.T) {
			reset()
			tt.setup()
			if _, err := metricParams(now); err == nil {
				t.Error("expected an error")
			}
		})
	}
	reset()
}

func TestStreamTailFilters(t *testing.T) {
	app, _, out := testApp(t, "text")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := streamTail(ctx, app, fakeFilterer{}, cloudwatch.TailOptions{
		LogGroup:     "/app/api",
		Filter:       "error",
		Match:        regexp.MustCompile("(?i)error"),
		PollInterval: 10 * time.Millisecond,
		Logger:       logging.NopLogger{},
	})
	if err != nil {
		t.Fatalf("streamTail() error = %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "ERROR disk full") {
		t.Errorf("expected matching event, got %q", got)
	}
	if strings.Contains(got, " ok\n") {
		t.Errorf("non-matching event should be dropped, got %q", got)
	}
}

func TestCacheCommands(t *testing.T) {
	app, _, out := testApp(t, "text")
	srv, err := server.New(app.logs, app.metrics, app.Cache(), server.Options{Logger: logging.NopLogger{}})
	if err != nil {
		t.Fatalf("server.New() error = %v", err)
	}
	hs := httptest.NewServer(srv.Handler())
	defer hs.Close()

	cacheAddr, cacheToken = hs.URL, ""
	defer func() { cacheAddr = "" }()

	queryStart, queryEnd, queryLimit = "1h", "now", 10
	queryFilter, queryString, queryExport = "", "", ""
	queryStats, queryShowURL, watchInterval = false, false, 0
	cmd := commandWith(app)
	if err := runQuery(cmd, []string{"/app/api"}); err != nil {
		t.Fatalf("runQuery() error = %v", err)
	}

	out.Reset()
	if err := cacheKeysCmd.RunE(cmd, nil); err != nil {
		t.Fatalf("cache keys error = %v", err)
	}
	if !strings.HasPrefix(out.String(), cloudwatch.NamespaceQuery+":") {
		t.Errorf("expected a query key, got %q", out.String())
	}

	if err := cacheResizeCmd.RunE(cmd, []string{"4"}); err != nil {
		t.Fatalf("cache resize error = %v", err)
	}
	if got := app.Cache().Stats().Capacity; got != 4 {
		t.Errorf("capacity = %d, want 4", got)
	}

	if err := cacheTTLCmd.RunE(cmd, []string{"90s"}); err != nil {
		t.Fatalf("cache ttl error = %v", err)
	}
	if got := app.Cache().Stats().TTL; got != 90*time.Second {
		t.Errorf("ttl = %v, want 90s", got)
	}

	if err := cachePurgeCmd.RunE(cmd, nil); err != nil {
		t.Fatalf("cache purge error = %v", err)
	}
	if got := app.Cache().Stats().Size; got != 0 {
		t.Errorf("size after purge = %d", got)
	}

	if err := cacheResizeCmd.RunE(cmd, []string{"-2"}); err == nil {
		t.Error("expected capacity -2 to be rejected")
	}
}

func TestCacheCommandUnreachable(t *testing.T) {
	app, _, _ := testApp(t, "text")
	hs := httptest.NewServer(nil)
	cacheAddr = hs.URL
	hs.Close()
	defer func() { cacheAddr = "" }()

	err := cacheStatsCmd.RunE(commandWith(app), nil)
	var se *herrors.SuggestiveError
	if !errors.As(err, &se) {
		t.Fatalf("expected SuggestiveError, got %v", err)
	}
	if !strings.Contains(err.Error(), "hoard serve") {
		t.Errorf("expected a hint to start the server, got %q", err.Error())
	}
}

func TestApplyConfig(t *testing.T) {
	app, _, _ := testApp(t, "text")
	srv, err := newServer(context.Background(), app)
	if err != nil {
		t.Fatalf("newServer() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		app.Cache().Put(fmt.Sprintf("k%d", i), i)
	}

	next := *app.Config
	next.Cache.Capacity = 1
	next.Cache.TTL = time.Hour
	applyConfig(app, srv, &next)

	stats := app.Cache().Stats()
	if stats.Capacity != 1 || stats.Size != 1 {
		t.Errorf("capacity/size = %d/%d, want 1/1", stats.Capacity, stats.Size)
	}
	if stats.TTL != time.Hour {
		t.Errorf("ttl = %v, want 1h", stats.TTL)
	}
}

func TestInitWritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".hoard.yaml")
	settings := initSettings(config.Defaults())

	var out bytes.Buffer
	written, err := writeConfigFile(&out, path, settings, false)
	if err != nil || !written {
		t.Fatalf("writeConfigFile() = %v, %v", written, err)
	}

	written, err = writeConfigFile(&out, path, settings, false)
	if err != nil || written {
		t.Errorf("second write without force = %v, %v; want skipped", written, err)
	}
	if !strings.Contains(out.String(), "already exists") {
		t.Errorf("expected a notice, got %q", out.String())
	}

	v := viper.New()
	config.Setup(v, path)
	if err := config.Read(v); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	cfg, err := config.Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := config.Defaults()
	if cfg.Region != want.Region || cfg.Cache != want.Cache || cfg.Serve.Addr != want.Serve.Addr || cfg.Serve.ShutdownTimeout != want.Serve.ShutdownTimeout {
		t.Errorf("round trip = %+v, want %+v", *cfg, want)
	}
}

func TestDescribeCapacity(t *testing.T) {
	for n, want := range map[int]string{-1: "unbounded", 0: "0 (disabled)", 64: "64"} {
		if got := describeCapacity(n); got != want {
			t.Errorf("describeCapacity(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestListingCommands(t *testing.T) {
	app, logs, out := testApp(t, "json")
	logs.missing = map[string]bool{"/app/apii": true}
	cmd := commandWith(app)

	groupsPrefix, groupsLimit = "/app/", 50
	if err := runGroups(cmd, nil); err != nil {
		t.Fatalf("runGroups() error = %v", err)
	}
	if !strings.Contains(out.String(), `"/app/web"`) || strings.Contains(out.String(), "lambda") {
		t.Errorf("unexpected groups output %q", out.String())
	}

	out.Reset()
	streamsPrefix, streamsLimit = "", 20
	if err := runStreams(cmd, []string{"/app/api"}); err != nil {
		t.Fatalf("runStreams() error = %v", err)
	}
	if !strings.Contains(out.String(), "i-0abc") {
		t.Errorf("unexpected streams output %q", out.String())
	}
	if err := runStreams(cmd, []string{"/app/apii"}); err == nil || !strings.Contains(err.Error(), "Did you mean") {
		t.Errorf("expected suggestions for a missing group, got %v", err)
	}

	out.Reset()
	if err := runRecord(cmd, []string{"ptr-1"}); err != nil {
		t.Fatalf("runRecord() error = %v", err)
	}
	if !strings.Contains(out.String(), "hello") {
		t.Errorf("unexpected record output %q", out.String())
	}
}
