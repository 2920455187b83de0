package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/txconsumer/internal/adapter/http/handler"
	"github.com/iho/txconsumer/internal/adapter/http/middleware"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	LedgerHandler *handler.LedgerHandler
	ObjectHandler *handler.ObjectHandler
	HealthHandler *handler.HealthHandler
	RateLimiter   *middleware.RateLimiter
	Logger        zerolog.Logger
}

// NewRouter creates the read API router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Metrics)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounts/{account}", func(r chi.Router) {
			r.Get("/balances", cfg.LedgerHandler.GetBalances)
			r.Get("/events", cfg.LedgerHandler.ListEvents)
			r.Get("/reconciliation", cfg.LedgerHandler.Reconcile)
		})

		r.Get("/objects/{key}/state", cfg.ObjectHandler.GetState)
	})

	return r
}
