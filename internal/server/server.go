// Package server exposes the portfolio over a JSON REST API plus a
// WebSocket event feed.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"stockradar/internal/domain"
	"stockradar/internal/server/handler"
	"stockradar/internal/server/middleware"
	"stockradar/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication

	// RateLimit is the per-client request budget per RateWindow. Zero
	// disables rate limiting even when a limiter is supplied.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers. Archives,
// Events and Scan are optional and their routes are skipped when nil.
type Handlers struct {
	Health      *handler.HealthHandler
	Positions   *handler.PositionHandler
	Portfolio   *handler.PortfolioHandler
	Performance *handler.PerformanceHandler
	Events      *handler.EventsHandler
	Archives    *handler.ArchiveHandler
	Scan        *handler.ScanHandler
}

// Server is the headless HTTP + WebSocket API for the paper portfolio.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes on a ServeMux and wraps it in the
// middleware chain (CORS, logging, rate limit, auth). The limiter and hub
// may be nil.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/positions", handlers.Positions.ListOpen)
	mux.HandleFunc("GET /api/positions/closed", handlers.Positions.ListClosed)
	mux.HandleFunc("GET /api/positions/{id}", handlers.Positions.Get)
	mux.HandleFunc("POST /api/positions/{id}/exit", handlers.Positions.Exit)

	mux.HandleFunc("GET /api/portfolio", handlers.Portfolio.GetStatus)
	mux.HandleFunc("GET /api/snapshots", handlers.Portfolio.ListSnapshots)
	mux.HandleFunc("POST /api/snapshots", handlers.Portfolio.TakeSnapshot)

	mux.HandleFunc("GET /api/performance", handlers.Performance.GetReport)

	if handlers.Events != nil {
		mux.HandleFunc("GET /api/events", handlers.Events.ListEvents)
	}
	if handlers.Archives != nil {
		mux.HandleFunc("GET /api/archives", handlers.Archives.List)
		mux.HandleFunc("GET /api/archives/{path...}", handlers.Archives.Download)
	}
	if handlers.Scan != nil {
		mux.HandleFunc("POST /api/scan/trigger", handlers.Scan.TriggerScan)
	}
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start listens for HTTP requests, blocking until the server errors or is
// shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
