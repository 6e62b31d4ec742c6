package api

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/phrazzld/tasksync-api/internal/domain"
)

// CreateTaskRequest is the body of POST /api/tasks.
// Required fields are listed first; the validator reports the first one
// that is missing or empty.
type CreateTaskRequest struct {
	ID          string  `json:"id"           validate:"required"`
	UserID      string  `json:"user_id"      validate:"required"`
	Title       string  `json:"title"        validate:"required"`
	Description string  `json:"description"`
	DueDate     *string `json:"due_date"`
	IsCompleted bool    `json:"is_completed"`
	DeviceID    string  `json:"device_id"`
}

// ToTask converts the request into a domain task without timestamps.
func (r CreateTaskRequest) ToTask() (*domain.Task, error) {
	var dueDate *time.Time
	if r.DueDate != nil {
		parsed, err := parseDueDate(*r.DueDate)
		if err != nil {
			return nil, err
		}
		dueDate = parsed
	}

	return &domain.Task{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Description: r.Description,
		DueDate:     dueDate,
		IsCompleted: r.IsCompleted,
		DeviceID:    r.DeviceID,
	}, nil
}

// OptionalField records whether a JSON key was present and whether its
// value was null.
type OptionalField[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// UnmarshalJSON is only called for keys present in the document, including
// explicit nulls.
func (o *OptionalField[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// UpdateTaskRequest is the body of PUT /api/tasks/{task_id}. Only the
// mutable fields are decoded; any other key is ignored.
type UpdateTaskRequest struct {
	Title       OptionalField[string] `json:"title"`
	Description OptionalField[string] `json:"description"`
	DueDate     OptionalField[string] `json:"due_date"`
	IsCompleted OptionalField[bool]   `json:"is_completed"`
}

// ToPatch converts the request into a domain patch.
// A null title or is_completed is rejected; a null description resets it to
// empty; a null due_date clears the deadline.
func (r UpdateTaskRequest) ToPatch() (domain.TaskPatch, error) {
	var patch domain.TaskPatch

	if r.Title.Set {
		if r.Title.Null {
			return patch, domain.NewValidationError(domain.FieldTitle, "cannot be null", domain.ErrEmptyField)
		}
		patch.Title = domain.Some(r.Title.Value)
	}

	if r.Description.Set {
		patch.Description = domain.Some(r.Description.Value)
	}

	if r.DueDate.Set {
		if r.DueDate.Null {
			patch.DueDate = domain.Some[*time.Time](nil)
		} else {
			dueDate, err := parseDueDate(r.DueDate.Value)
			if err != nil {
				return patch, err
			}
			patch.DueDate = domain.Some(dueDate)
		}
	}

	if r.IsCompleted.Set {
		if r.IsCompleted.Null {
			return patch, domain.NewValidationError(domain.FieldIsCompleted, "cannot be null", domain.ErrInvalidFormat)
		}
		patch.IsCompleted = domain.Some(r.IsCompleted.Value)
	}

	return patch, nil
}

// parseDueDate treats an empty string as "no deadline".
func parseDueDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := domain.ParseTimestamp(s)
	if err != nil {
		return nil, domain.NewValidationError(domain.FieldDueDate, "must be an ISO-8601 date or timestamp", err)
	}
	return &t, nil
}

// TaskResponse is the wire form of a task.
type TaskResponse struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DueDate     *string `json:"due_date"`
	IsCompleted bool    `json:"is_completed"`
	DeviceID    string  `json:"device_id"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// NewTaskResponse renders t with canonical timestamps.
func NewTaskResponse(t *domain.Task) TaskResponse {
	resp := TaskResponse{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		IsCompleted: t.IsCompleted,
		DeviceID:    t.DeviceID,
		CreatedAt:   domain.FormatTimestamp(t.CreatedAt),
		UpdatedAt:   domain.FormatTimestamp(t.UpdatedAt),
	}
	if t.DueDate != nil {
		due := domain.FormatTimestamp(*t.DueDate)
		resp.DueDate = &due
	}
	return resp
}

// NewTaskResponses renders a list; the result is never nil so it encodes as [].
func NewTaskResponses(tasks []*domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, NewTaskResponse(t))
	}
	return out
}
