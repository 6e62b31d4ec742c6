package main

import (
	"context"
	"fmt"
	"log/slog"

	apiMiddleware "github.com/phrazzld/tasksync-api/internal/api/middleware"
	"github.com/phrazzld/tasksync-api/internal/config"
	"github.com/phrazzld/tasksync-api/internal/platform/postgres"
	"github.com/phrazzld/tasksync-api/internal/redact"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	redis "github.com/redis/go-redis/v9"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	gateway *postgres.Gateway
	redis   *redis.Client

	registry    *prometheus.Registry
	httpMetrics *apiMiddleware.Metrics
}

// newApplication creates the application with its connection pool, metrics
// registry and optional Redis client. The pool connects lazily, so a store
// that is down at start surfaces through /health rather than a crash.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gateway, err := postgres.Open(cfg.Database, logger, postgres.NewGatewayMetrics(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := gateway.Ping(ctx); err != nil {
		logger.Warn("database not reachable at startup",
			slog.String("error", redact.Error(err)))
	}

	app := &application{
		config:      cfg,
		logger:      logger,
		gateway:     gateway,
		redis:       apiMiddleware.NewRedisClient(ctx, cfg.RateLimit, logger),
		registry:    registry,
		httpMetrics: apiMiddleware.NewMetrics(registry),
	}

	logger.Info("application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", slog.String("error", redact.Error(err)))
		}
	}

	if app.gateway != nil {
		if err := app.gateway.Close(); err != nil {
			app.logger.Error("error closing database pool", slog.String("error", redact.Error(err)))
		}
	}

	app.logger.Info("application shutdown completed")
}
