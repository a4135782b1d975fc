// Package server exposes the cached CloudWatch readers and the cache itself
// over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jmurray2011/hoard/internal/cloudwatch"
	"github.com/jmurray2011/hoard/internal/config"
	"github.com/jmurray2011/hoard/internal/logging"
	"github.com/jmurray2011/hoard/internal/reqcache"
)

// Options configures a Server.
type Options struct {
	Addr string

	// TokenHash is a bcrypt hash of the bearer token required by cache
	// mutations. Empty disables the check.
	TokenHash string

	// Allow lists the CIDRs or addresses allowed to connect. Empty allows all.
	Allow []string

	Logger logging.Logger
}

// Server serves the /v1 API.
type Server struct {
	logs    cloudwatch.LogsReader
	metrics cloudwatch.MetricsReader
	cache   *reqcache.Cache[any]
	log     logging.Logger
	r       *gin.Engine
	srv     *http.Server

	mu        sync.RWMutex
	tokenHash string
}

// New builds the router. logs and metrics are normally the cached readers
// sharing cache.
func New(logs cloudwatch.LogsReader, metrics cloudwatch.MetricsReader, cache *reqcache.Cache[any], opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithField("component", "server")

	allowed := make([]*net.IPNet, 0, len(opts.Allow))
	for _, entry := range opts.Allow {
		n, err := config.ParseAllowEntry(entry)
		if err != nil {
			return nil, err
		}
		allowed = append(allowed, n)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	// ClientIP must come from the connection, not X-Forwarded-For
	if err := r.SetTrustedProxies(nil); err != nil {
		return nil, err
	}
	r.Use(requestLogger(logger))
	r.Use(gin.Recovery())
	if len(allowed) > 0 {
		logger.Info("IP ACL enabled with %d allowed networks", len(allowed))
		r.Use(ipACL(allowed, logger))
	}

	s := &Server{
		logs:      logs,
		metrics:   metrics,
		cache:     cache,
		log:       logger,
		r:         r,
		tokenHash: opts.TokenHash,
	}

	r.GET("/health", s.health)

	v1 := r.Group("/v1")
	{
		v1.GET("/groups", s.listGroups)
		v1.GET("/streams", s.listStreams)
		v1.GET("/query", s.query)
		v1.GET("/record", s.record)
		v1.GET("/metrics", s.metricStats)
		v1.GET("/metrics/list", s.listMetrics)

		v1.GET("/cache", s.cacheStats)
		v1.GET("/cache/keys", s.cacheKeys)

		admin := v1.Group("/cache")
		admin.Use(s.auth)
		{
			admin.DELETE("", s.purgeCache)
			admin.PUT("/capacity", s.resizeCache)
			admin.PUT("/ttl", s.setCacheTTL)
			admin.DELETE("/keys/:key", s.evictKey)
		}
	}

	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.r
}

// SetTokenHash replaces the bcrypt hash checked by cache mutations.
func (s *Server) SetTokenHash(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenHash = hash
}

func (s *Server) currentTokenHash() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokenHash
}

// Start listens on the configured address and blocks until the server stops.
// It returns nil after a graceful Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("listening on %s", ln.Addr())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down")
	return s.srv.Shutdown(ctx)
}
