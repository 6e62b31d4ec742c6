package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/tasksync-api/internal/api/shared"
	"github.com/phrazzld/tasksync-api/internal/platform/logger"
	"github.com/phrazzld/tasksync-api/internal/redact"
)

// ServiceName is reported by the service index.
const ServiceName = "tasksync-api"

// Pinger is the part of store.Gateway the health probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message,omitempty"`
	Version   string `json:"version,omitempty"`
}

// IndexResponse describes the service and its endpoints.
type IndexResponse struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Endpoints map[string]string `json:"endpoints"`
}

// HealthHandler serves the liveness probe and the service index.
// It never reads task data.
type HealthHandler struct {
	db      Pinger
	version string
	logger  *slog.Logger
	now     func() time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db Pinger, version string, logger *slog.Logger) *HealthHandler {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil for HealthHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		db:      db,
		version: version,
		logger:  logger.With(slog.String("component", "health_handler")),
		now:     time.Now,
	}
}

func (h *HealthHandler) timestamp() string {
	return h.now().UTC().Format(time.RFC3339)
}

// Health handles GET /health by leasing and releasing one connection.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		logger.FromContextOrDefault(r.Context(), h.logger).Error("health check failed",
			slog.String("error", redact.Error(err)))
		shared.RespondWithJSON(w, r, http.StatusInternalServerError, HealthResponse{
			Status:    "ERROR",
			Timestamp: h.timestamp(),
			Message:   GetSafeErrorMessage(err),
		})
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "OK",
		Timestamp: h.timestamp(),
		Message:   "database connection ok",
		Version:   h.version,
	})
}

// Index handles GET / with a description of the service.
func (h *HealthHandler) Index(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, IndexResponse{
		Name:      ServiceName,
		Version:   h.version,
		Timestamp: h.timestamp(),
		Endpoints: map[string]string{
			"GET /health":               "liveness probe",
			"GET /api/tasks?user_id=ID": "list a user's tasks",
			"POST /api/tasks":           "create a task",
			"PUT /api/tasks/{task_id}":  "update task fields",
			"GET /metrics":              "prometheus metrics",
		},
	})
}
