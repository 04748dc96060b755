// Package server hosts the HTTP API: core routes, module routes under
// /api/v1/{module}, and the Prometheus scrape endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	_ "github.com/HerbHall/linkstat/internal/docs" // registers the OpenAPI document
	"github.com/HerbHall/linkstat/internal/plugin"
	"github.com/HerbHall/linkstat/internal/version"
)

// VersionHeader is set on every core response.
const VersionHeader = "X-Linkstat-Version"

// Server is the linkstat HTTP server.
type Server struct {
	httpServer *http.Server
	registry   *plugin.Registry
	gatherer   prometheus.Gatherer
	logger     *zap.Logger
	mux        *http.ServeMux
	maxConns   int
}

// Option configures a Server.
type Option func(*Server)

// WithMaxConnections caps concurrently open client connections, including
// snapshot streams. Zero means no limit.
func WithMaxConnections(n int) Option {
	return func(s *Server) { s.maxConns = n }
}

// New creates a Server. Routes are mounted from the registry's enabled
// modules, so call it after InitAll.
func New(addr string, reg *plugin.Registry, gatherer prometheus.Gatherer, logger *zap.Logger, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		registry: reg,
		gatherer: gatherer,
		logger:   logger,
		mux:      mux,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerCoreRoutes()
	s.mountModuleRoutes()

	return s
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// registerCoreRoutes sets up routes that are always available.
func (s *Server) registerCoreRoutes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/modules", s.handleModules)
	if s.gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	s.mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

// mountModuleRoutes registers all module routes under /api/v1/{module}/.
func (s *Server) mountModuleRoutes() {
	for moduleName, routes := range s.registry.AllRoutes() {
		for _, route := range routes {
			pattern := fmt.Sprintf("%s /api/v1/%s%s", route.Method, moduleName, route.Path)
			s.mux.HandleFunc(pattern, route.Handler)
			s.logger.Debug("mounted route",
				zap.String("module", moduleName),
				zap.String("pattern", pattern),
			)
		}
	}
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	if s.maxConns > 0 {
		ln = netutil.LimitListener(ln, s.maxConns)
	}
	s.logger.Info("starting HTTP server",
		zap.String("addr", ln.Addr().String()),
		zap.Int("max_connections", s.maxConns),
	)
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(VersionHeader, version.Short())
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"service": "linkstat",
		"version": version.Map(),
	})
}

// handleModules returns the registered modules and whether each is enabled.
func (s *Server) handleModules(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(VersionHeader, version.Short())
	_ = json.NewEncoder(w).Encode(s.registry.Statuses())
}
