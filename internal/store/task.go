package store

import (
	"context"

	"github.com/phrazzld/tasksync-api/internal/domain"
)

// TaskStore defines the interface for task data persistence.
//
// Updates follow last-writer-wins at field granularity: there is no version
// check, only the fields named by a patch are written, and a later write to
// the same field replaces an earlier one without conflict detection.
type TaskStore interface {
	// ListByOwner returns the tasks of userID, newest created first.
	// Returns an empty slice if the owner has no tasks.
	ListByOwner(ctx context.Context, userID string) ([]*domain.Task, error)

	// GetByID retrieves a task by its ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, taskID string) (*domain.Task, error)

	// Create inserts task with server-assigned timestamps in one statement and
	// fills CreatedAt/UpdatedAt back into task.
	// Returns a *domain.ValidationError for missing required fields and
	// ErrTaskExists if the ID is taken.
	Create(ctx context.Context, task *domain.Task) error

	// Update applies patch to the task and advances updated_at.
	// Returns ErrNoFields for an empty patch and ErrTaskNotFound if no task
	// has taskID; neither case writes anything.
	Update(ctx context.Context, taskID string, patch domain.TaskPatch) error
}
