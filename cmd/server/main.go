package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/txconsumer/internal/adapter/http"
	"github.com/iho/txconsumer/internal/adapter/http/handler"
	"github.com/iho/txconsumer/internal/adapter/http/middleware"
	"github.com/iho/txconsumer/internal/app"
	"github.com/iho/txconsumer/internal/infrastructure/config"
	"github.com/iho/txconsumer/internal/infrastructure/logger"
)

// limiterIdleTimeout is how long a client's rate limiter outlives its last
// request.
const limiterIdleTimeout = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: cfg.ServiceName,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, appLogger, app.Options{})
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to build processor")
	}
	defer a.Close()

	rateLimiter := middleware.NewRateLimiter(cfg.HTTPRateLimit, cfg.HTTPRateBurst)
	go sweepLimiters(ctx, rateLimiter, appLogger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      httpAdapter.NewRouter(newRouterConfig(a, rateLimiter, appLogger)),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		appLogger.Info().Str("port", cfg.HTTPPort).Str("backend", cfg.StorageBackend).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	appLogger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info().Msg("server stopped")
}

func newRouterConfig(a *app.App, rateLimiter *middleware.RateLimiter, logger zerolog.Logger) httpAdapter.RouterConfig {
	health := handler.NewHealthHandler()
	for _, name := range slices.Sorted(maps.Keys(a.Storage.Checks)) {
		health.AddCheck(name, handler.Check(a.Storage.Checks[name]))
	}

	return httpAdapter.RouterConfig{
		LedgerHandler: handler.NewLedgerHandler(a.Queries, a.Reconciliation),
		ObjectHandler: handler.NewObjectHandler(a.Queries),
		HealthHandler: health,
		RateLimiter:   rateLimiter,
		Logger:        logger,
	}
}

func sweepLimiters(ctx context.Context, rl *middleware.RateLimiter, logger zerolog.Logger) {
	ticker := time.NewTicker(limiterIdleTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.CleanupLimiters(limiterIdleTimeout); n > 0 {
				logger.Debug().Int("removed", n).Msg("dropped idle rate limiters")
			}
		}
	}
}
