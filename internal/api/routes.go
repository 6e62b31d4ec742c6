package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the task, health and index endpoints on r.
// taskMiddleware wraps only the task routes, so probes are never throttled.
func RegisterRoutes(
	r chi.Router,
	tasks *TaskHandler,
	health *HealthHandler,
	taskMiddleware ...func(http.Handler) http.Handler,
) {
	r.Get("/", health.Index)
	r.Get("/health", health.Health)

	r.Route("/api/tasks", func(r chi.Router) {
		r.Use(taskMiddleware...)
		r.Get("/", tasks.ListTasks)
		r.Post("/", tasks.CreateTask)
		r.Put("/{task_id}", tasks.UpdateTask)
	})
}
