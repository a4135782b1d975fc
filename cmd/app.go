package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jmurray2011/hoard/internal/cloudwatch"
	"github.com/jmurray2011/hoard/internal/config"
	"github.com/jmurray2011/hoard/internal/logging"
	"github.com/jmurray2011/hoard/internal/output"
	"github.com/jmurray2011/hoard/internal/reqcache"
	"github.com/jmurray2011/hoard/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// appContextKey is the context key for the App instance.
type appContextKey struct{}

// App holds the application dependencies that can be injected for testing.
type App struct {
	Config  *config.Config
	Render  *ui.Renderer
	Log     logging.Logger
	NoColor bool

	mu        sync.Mutex
	cache     *reqcache.Cache[any]
	session   *cloudwatch.Session
	logs      cloudwatch.LogsReader
	metrics   cloudwatch.MetricsReader
	tailer    cloudwatch.EventFilterer
	accountID string
}

// NewApp creates a new App from the loaded viper settings.
func NewApp() (*App, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	app := NewAppWithConfig(cfg, render)
	app.NoColor = noColor
	return app, nil
}

// NewAppWithConfig creates a new App with the given configuration.
// This is primarily used for testing.
func NewAppWithConfig(cfg *config.Config, renderer *ui.Renderer) *App {
	if renderer == nil {
		renderer = ui.NewRenderer()
	}
	return &App{
		Config: cfg,
		Render: renderer,
		Log:    logging.Default(),
	}
}

// GetApp retrieves the App from the command context, creating one from the
// current configuration if none was set.
func GetApp(cmd *cobra.Command) (*App, error) {
	if ctx := cmd.Context(); ctx != nil {
		if app, ok := ctx.Value(appContextKey{}).(*App); ok {
			return app, nil
		}
	}
	return NewApp()
}

// SetApp stores the App in the context for a command.
func SetApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appContextKey{}, app)
}

// Debugf prints a debug message if verbose mode is enabled.
func (a *App) Debugf(format string, args ...interface{}) {
	a.Render.Debug(format, args...)
}

// Out is where command results are written.
func (a *App) Out() io.Writer {
	return a.Render.Out()
}

// Formatter returns a formatter for the configured output format.
func (a *App) Formatter(w io.Writer) *output.Formatter {
	return output.NewFormatter(a.Config.Output, w).WithNoColor(a.NoColor)
}

// Cache returns the process-wide request cache, creating it on first use.
func (a *App) Cache() *reqcache.Cache[any] {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cache == nil {
		a.cache = newRequestCache(a.Config.Cache, a.Log)
	}
	return a.cache
}

// newRequestCache builds a cache from config. Capacity 0 disables caching,
// which reqcache.New would read as unbounded, so it is applied by Resize.
func newRequestCache(cfg config.CacheConfig, log logging.Logger) *reqcache.Cache[any] {
	c := reqcache.New[any](reqcache.Options{
		Capacity: cfg.Capacity,
		TTL:      cfg.TTL,
		Logger:   log,
	})
	if cfg.Capacity == 0 {
		c.Resize(0)
	}
	return c
}

func (a *App) cacheOptions() cloudwatch.CacheOptions {
	return cloudwatch.CacheOptions{
		KeyResolution: a.Config.Cache.KeyResolution,
		Logger:        a.Log,
	}
}

// Session returns the AWS session for the configured profile and region.
func (a *App) Session(ctx context.Context) (*cloudwatch.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != nil {
		return a.session, nil
	}
	s, err := cloudwatch.NewSession(ctx, a.Config.Profile, a.Config.Region)
	if err != nil {
		return nil, err
	}
	a.session = s
	return s, nil
}

// Logs returns the cached CloudWatch Logs reader.
func (a *App) Logs(ctx context.Context) (cloudwatch.LogsReader, error) {
	a.mu.Lock()
	logs := a.logs
	a.mu.Unlock()
	if logs != nil {
		return logs, nil
	}

	s, err := a.Session(ctx)
	if err != nil {
		return nil, err
	}
	logs = cloudwatch.NewCachedLogs(s.Logs(), a.Cache(), a.cacheOptions())

	a.mu.Lock()
	a.logs = logs
	a.mu.Unlock()
	return logs, nil
}

// Metrics returns the cached CloudWatch Metrics reader.
func (a *App) Metrics(ctx context.Context) (cloudwatch.MetricsReader, error) {
	a.mu.Lock()
	metrics := a.metrics
	a.mu.Unlock()
	if metrics != nil {
		return metrics, nil
	}

	s, err := a.Session(ctx)
	if err != nil {
		return nil, err
	}
	metrics = cloudwatch.NewCachedMetrics(s.Metrics(), a.Cache(), a.cacheOptions())

	a.mu.Lock()
	a.metrics = metrics
	a.mu.Unlock()
	return metrics, nil
}

// Tailer returns the uncached event filterer used by tail.
func (a *App) Tailer(ctx context.Context) (cloudwatch.EventFilterer, error) {
	a.mu.Lock()
	tailer := a.tailer
	a.mu.Unlock()
	if tailer != nil {
		return tailer, nil
	}

	s, err := a.Session(ctx)
	if err != nil {
		return nil, err
	}
	tailer = s.Logs()

	a.mu.Lock()
	a.tailer = tailer
	a.mu.Unlock()
	return tailer, nil
}

// AccountID returns the AWS account ID for the session. The lookup is
// remembered for the life of the App.
func (a *App) AccountID(ctx context.Context) string {
	a.mu.Lock()
	id := a.accountID
	a.mu.Unlock()
	if id != "" {
		return id
	}

	s, err := a.Session(ctx)
	if err != nil {
		a.Debugf("Failed to create session: %v", err)
		return ""
	}
	id, err = s.AccountID(ctx)
	if err != nil {
		a.Debugf("Failed to get account ID: %v", err)
		return ""
	}

	a.mu.Lock()
	a.accountID = id
	a.mu.Unlock()
	return id
}

// describeTarget is used in status lines, e.g. "prod/us-east-1".
func (a *App) describeTarget() string {
	if a.Config.Profile == "" {
		return a.Config.Region
	}
	return fmt.Sprintf("%s/%s", a.Config.Profile, a.Config.Region)
}
