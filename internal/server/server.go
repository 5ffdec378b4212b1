// Package server exposes the HTTP + WebSocket API: deal queries, the
// decision channel ingress, the audit trail, and the skip log.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/flipscout/flipscout/internal/domain"
	"github.com/flipscout/flipscout/internal/server/handler"
	"github.com/flipscout/flipscout/internal/server/middleware"
	"github.com/flipscout/flipscout/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	RateLimit   int    // requests per minute per client; 0 disables
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health *handler.HealthHandler
	Deals  *handler.DealHandler
	Audit  *handler.AuditHandler
	Skips  *handler.SkipHandler
	Scan   *handler.ScanHandler // optional; nil when no scan loop runs in-process
}

// Server is the headless HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (rate limiting, auth, logging, CORS) wired up. The
// rate limiter may be nil, in which case rate limiting is disabled.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Slot status: exposes the non-terminal deal count.
	mux.HandleFunc("GET /api/status", handlers.Deals.Status)

	// Deal endpoints. "active" must be registered before "{id}".
	mux.HandleFunc("GET /api/deals", handlers.Deals.ListDeals)
	mux.HandleFunc("GET /api/deals/active", handlers.Deals.GetActiveDeal)
	mux.HandleFunc("GET /api/deals/{id}", handlers.Deals.GetDeal)
	mux.HandleFunc("GET /api/deals/{id}/audit", handlers.Audit.ListDealAudit)

	// Decision channel ingress.
	mux.HandleFunc("POST /api/deals/{id}/decision", handlers.Deals.Decide)
	mux.HandleFunc("POST /api/deals/{id}/complete", handlers.Deals.CompleteDeal)

	// Manual scan trigger, registered only when a scan loop runs in-process.
	if handlers.Scan != nil {
		mux.HandleFunc("POST /api/scan/trigger", handlers.Scan.TriggerScan)
	}

	// Audit trail and skip log.
	mux.HandleFunc("GET /api/audit", handlers.Audit.ListAudit)
	mux.HandleFunc("GET /api/skips", handlers.Skips.ListSkips)
	mux.HandleFunc("GET /api/skips/resurfaceable", handlers.Skips.ListResurfaceable)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, time.Minute)(h)
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
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
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

// Handler returns the fully assembled handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
