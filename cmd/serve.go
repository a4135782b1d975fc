package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmurray2011/hoard/internal/config"
	"github.com/jmurray2011/hoard/internal/logging"
	"github.com/jmurray2011/hoard/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the cached readers over HTTP",
	Long: `Run an HTTP service in front of CloudWatch so many clients share one cache.

Reads:
  GET  /health
  GET  /v1/groups?prefix=&limit=
  GET  /v1/streams?group=&prefix=&limit=
  GET  /v1/query?group=&since=&end=&q=|filter=&limit=&stats=
  GET  /v1/record?ptr=
  GET  /v1/metrics?namespace=&metric=&stat=&period=&dim=Name=Value
  GET  /v1/metrics/list?namespace=&metric=
  GET  /v1/cache
  GET  /v1/cache/keys

Cache administration (bearer token when serve.token_hash is set):
  DELETE /v1/cache
  PUT    /v1/cache/capacity   {"capacity": 512}
  PUT    /v1/cache/ttl        {"ttl": "10m"}
  DELETE /v1/cache/keys/:key

The config file is watched. Changes to cache.capacity, cache.ttl,
serve.token_hash and log_level apply without a restart.

Examples:
  hoard serve
  hoard serve --addr 0.0.0.0:8787`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default serve.addr)")
	_ = viper.BindPFlag("serve.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	mgr := config.NewManager(viper.GetViper(), logging.Default())
	if err := mgr.Load(); err != nil {
		return err
	}
	cfg := mgr.Get()

	app := NewAppWithConfig(cfg, render)
	app.NoColor = noColor

	srv, err := newServer(cmd.Context(), app)
	if err != nil {
		return err
	}

	mgr.OnConfigChange(func(next *config.Config) {
		applyConfig(app, srv, next)
	})
	if err := mgr.Watch(); err != nil && !errors.Is(err, config.ErrNoConfigFile) {
		return err
	}
	if path := mgr.ConfigFileUsed(); path != "" {
		app.Log.Info("watching %s", path)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	app.Render.Status("Listening on http://%s (%s)", cfg.Serve.Addr, app.describeTarget())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Serve.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// newServer wires the app's cached readers into an HTTP server.
func newServer(ctx context.Context, app *App) (*server.Server, error) {
	logs, err := app.Logs(ctx)
	if err != nil {
		return nil, err
	}
	metrics, err := app.Metrics(ctx)
	if err != nil {
		return nil, err
	}

	if id := app.AccountID(ctx); id != "" {
		app.Log.Info("serving account %s in %s", id, app.Config.Region)
	}

	return server.New(logs, metrics, app.Cache(), server.Options{
		Addr:      app.Config.Serve.Addr,
		TokenHash: app.Config.Serve.TokenHash,
		Allow:     app.Config.Serve.Allow,
		Logger:    app.Log,
	})
}

// applyConfig pushes the settings that can change at runtime. Address,
// allow list and AWS target need a restart.
func applyConfig(app *App, srv *server.Server, next *config.Config) {
	cache := app.Cache()
	prev := cache.Stats()

	if next.Cache.Capacity != prev.Capacity {
		evicted := cache.Resize(next.Cache.Capacity)
		app.Log.Info("cache capacity %d -> %d (%d evicted)", prev.Capacity, next.Cache.Capacity, evicted)
	}
	if next.Cache.TTL != prev.TTL {
		cache.SetTTL(next.Cache.TTL)
		app.Log.Info("cache ttl %s -> %s", prev.TTL, next.Cache.TTL)
	}
	srv.SetTokenHash(next.Serve.TokenHash)

	if level, err := logging.ParseLevel(next.LogLevel); err == nil && !verbose {
		logging.Default().SetLevel(level)
	}

	if next.Serve.Addr != app.Config.Serve.Addr {
		app.Log.Warn("serve.addr changed to %s; restart to apply", next.Serve.Addr)
	}
}
