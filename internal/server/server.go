// Package server assembles the relay HTTP API: routing, middleware, and
// lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/peerlane/relay/internal/server/handler"
	"github.com/peerlane/relay/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health *handler.HealthHandler
	Auth   *handler.AuthHandler
	Orders *handler.OrderHandler
	Trades *handler.TradeHandler
	Config *handler.ChainConfigHandler
	Gas    *handler.GasHandler
}

// Server is the relay's HTTP API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes on a ServeMux, wires the middleware chain,
// and returns the server. verifier guards the seller/buyer-only endpoints.
func NewServer(cfg Config, handlers Handlers, verifier middleware.TokenVerifier, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Wallet sign-in.
	mux.HandleFunc("GET /api/auth/nonce", handlers.Auth.Nonce)
	mux.HandleFunc("POST /api/auth/verify", handlers.Auth.Verify)

	// Orders.
	mux.HandleFunc("POST /api/orders", handlers.Orders.Create)
	mux.HandleFunc("GET /api/orders", handlers.Orders.ListActive)
	mux.HandleFunc("GET /api/orders/code/{code}", handlers.Orders.GetOrderByCode)
	mux.HandleFunc("GET /api/orders/{id}", handlers.Orders.GetOrder)
	mux.HandleFunc("GET /api/orders/{id}/activities", handlers.Orders.Activities)
	mux.HandleFunc("POST /api/orders/{id}/payment-info", handlers.Orders.SubmitPaymentInfo)
	mux.HandleFunc("POST /api/orders/{id}/withdrawals", handlers.Orders.RecordWithdrawal)
	mux.HandleFunc("POST /api/orders/{id}/visibility",
		middleware.RequireAuth(verifier, handlers.Orders.SetVisibility))

	// Trades.
	mux.HandleFunc("POST /api/trades", handlers.Trades.Record)
	mux.HandleFunc("GET /api/trades/buyer/{address}", handlers.Trades.ListByBuyer)
	mux.HandleFunc("GET /api/trades/seller/{address}", handlers.Trades.ListBySeller)
	mux.HandleFunc("GET /api/trades/{id}", handlers.Trades.GetTrade)
	mux.HandleFunc("POST /api/trades/{id}/settle", handlers.Trades.Settle)
	mux.HandleFunc("GET /api/trades/{id}/pdf", handlers.Trades.DownloadPDF)
	mux.HandleFunc("PUT /api/trades/{id}/pdf",
		middleware.RequireAuth(verifier, handlers.Trades.UploadPDF))

	// Contract config and gas accounting.
	mux.HandleFunc("GET /api/config/{chainID}", handlers.Config.GetConfig)
	mux.HandleFunc("GET /api/gas/summary/{chainID}", handlers.Gas.Summary)
	mux.HandleFunc("GET /api/gas/reconciler", handlers.Gas.ReconcilerStats)

	// Middleware chain.
	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

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

// Start begins listening for HTTP requests and blocks until the server stops.
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
// within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware sets CORS headers for the allowed origins. An empty list
// allows every origin.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
