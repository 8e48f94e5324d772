// Package server exposes the read-only HTTP and WebSocket API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/crossarb/internal/server/handler"
	"github.com/alanyoungcy/crossarb/internal/server/middleware"
	"github.com/alanyoungcy/crossarb/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server registers. Every
// endpoint is a read: the pipeline is driven by its own loops, never by the
// API.
type Handlers struct {
	Health        *handler.HealthHandler
	Opportunities *handler.OpportunityHandler
	Plans         *handler.PlanHandler
	Executions    *handler.ExecutionHandler
	Stats         *handler.StatsHandler
	Audit         *handler.AuditHandler
	Quotes        *handler.QuoteHandler
}

// Server is the headless HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered and the middleware
// chain (logging, CORS, auth) applied. wsHub may be nil to disable the
// WebSocket endpoint.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required on the rest either; the whole API is
	// read-only and auth is optional).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/opportunities", handlers.Opportunities.ListRecent)
	mux.HandleFunc("GET /api/opportunities/{id}", handlers.Opportunities.Get)

	mux.HandleFunc("GET /api/plans", handlers.Plans.ListRecent)
	mux.HandleFunc("GET /api/plans/active", handlers.Plans.ListActive)
	mux.HandleFunc("GET /api/plans/{id}", handlers.Plans.Get)
	mux.HandleFunc("GET /api/plans/{id}/execution", handlers.Executions.GetByPlan)

	mux.HandleFunc("GET /api/executions", handlers.Executions.ListRecent)
	mux.HandleFunc("GET /api/stats", handlers.Stats.Get)
	mux.HandleFunc("GET /api/audit", handlers.Audit.List)
	mux.HandleFunc("GET /api/quotes/{venue}/{token}", handlers.Quotes.Get)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
