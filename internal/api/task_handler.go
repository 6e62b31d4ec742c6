package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/tasksync-api/internal/api/shared"
	"github.com/phrazzld/tasksync-api/internal/domain"
	"github.com/phrazzld/tasksync-api/internal/platform/logger"
	"github.com/phrazzld/tasksync-api/internal/store"
)

// TaskStoreFactory binds a task store to one leased connection.
type TaskStoreFactory func(conn store.Conn) store.TaskStore

// TaskHandler handles task-related HTTP requests. Every request that reaches
// the store leases exactly one connection and releases it before returning.
type TaskHandler struct {
	gateway store.Gateway
	stores  TaskStoreFactory
	logger  *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(gateway store.Gateway, stores TaskStoreFactory, logger *slog.Logger) *TaskHandler {
	if gateway == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("gateway cannot be nil for TaskHandler")
	}
	if stores == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("task store factory cannot be nil for TaskHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		gateway: gateway,
		stores:  stores,
		logger:  logger.With(slog.String("component", "task_handler")),
	}
}

// withTaskStore runs fn with a task store bound to a freshly leased connection.
func (h *TaskHandler) withTaskStore(ctx context.Context, fn func(ctx context.Context, s store.TaskStore) error) error {
	return h.gateway.WithConn(ctx, func(ctx context.Context, conn store.Conn) error {
		return fn(ctx, h.stores(conn))
	})
}

// ListTasks handles GET /api/tasks?user_id=X requests.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	// Tasks are scoped by owner; there is no listing across users
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}

	var tasks []*domain.Task
	err := h.withTaskStore(r.Context(), func(ctx context.Context, s store.TaskStore) error {
		var err error
		tasks, err = s.ListByOwner(ctx, userID)
		return err
	})
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	log.Debug("listed tasks", slog.String("user_id", userID), slog.Int("count", len(tasks)))
	shared.RespondWithJSON(w, r, http.StatusOK, NewTaskResponses(tasks))
}

// CreateTask handles POST /api/tasks requests.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	// Parse request body
	var req CreateTaskRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	// Validate request; report the first missing field by its JSON name
	if err := shared.ValidateRequest(&req); err != nil {
		if field, _, ok := shared.FirstInvalidField(err); ok {
			shared.RespondWithError(w, r, http.StatusBadRequest,
				fmt.Sprintf("missing required field: %s", field))
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	// Convert to domain object; this parses due_date
	task, err := req.ToTask()
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	err = h.withTaskStore(r.Context(), func(ctx context.Context, s store.TaskStore) error {
		return s.Create(ctx, task)
	})
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	log.Debug("task created",
		slog.String("task_id", task.ID),
		slog.String("user_id", task.UserID))
	shared.RespondWithJSON(w, r, http.StatusCreated, shared.MessageResponse{
		Message: "task created",
		TaskID:  task.ID,
	})
}

// UpdateTask handles PUT /api/tasks/{task_id} requests.
// An empty body is treated like an empty object.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	taskID := chi.URLParam(r, "task_id")

	// Parse request body; io.EOF means no body at all, which decodes as {}
	var req UpdateTaskRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	// Build the patch, then reject empty or invalid ones before leasing a connection
	patch, err := req.ToPatch()
	if err == nil && patch.IsEmpty() {
		err = store.ErrNoFields
	}
	if err == nil {
		err = patch.Validate()
	}
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	err = h.withTaskStore(r.Context(), func(ctx context.Context, s store.TaskStore) error {
		return s.Update(ctx, taskID, patch)
	})
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	log.Debug("task updated",
		slog.String("task_id", taskID),
		slog.Any("fields", patch.Fields()))
	shared.RespondWithJSON(w, r, http.StatusOK, shared.MessageResponse{Message: "task updated"})
}
