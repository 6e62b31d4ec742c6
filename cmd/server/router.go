package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/tasksync-api/internal/api"
	apiMiddleware "github.com/phrazzld/tasksync-api/internal/api/middleware"
	"github.com/phrazzld/tasksync-api/internal/platform/postgres"
	"github.com/phrazzld/tasksync-api/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(middleware.Recoverer)
	r.Use(app.httpMetrics.Instrument)
	r.Use(apiMiddleware.CORS(app.config.Server.CORSOrigin))

	// A nil *redis.Client must not become a non-nil interface.
	var counter apiMiddleware.WindowCounter
	if app.redis != nil {
		counter = app.redis
	}
	limiter := apiMiddleware.NewRateLimiter(
		counter,
		app.config.RateLimit.Requests,
		app.config.RateLimit.Window,
		app.httpMetrics,
		app.logger,
	)

	taskHandler := api.NewTaskHandler(
		app.gateway,
		func(conn store.Conn) store.TaskStore {
			return postgres.NewPostgresTaskStore(conn, app.logger)
		},
		app.logger,
	)
	healthHandler := api.NewHealthHandler(app.gateway, app.config.Server.Version, app.logger)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))

	api.RegisterRoutes(r, taskHandler, healthHandler, limiter.Limit)

	return r
}
