package domain

import "time"

// Task field names as they appear on the wire and in the tasks table.
const (
	FieldID          = "id"
	FieldUserID      = "user_id"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldDueDate     = "due_date"
	FieldIsCompleted = "is_completed"
	FieldDeviceID    = "device_id"
)

// Task is a to-do item owned by exactly one user and synchronized across
// that user's devices. ID is chosen by the client and never changes.
type Task struct {
	ID          string
	UserID      string
	Title       string
	Description string
	// DueDate is nil when the task has no deadline.
	DueDate     *time.Time
	IsCompleted bool
	// DeviceID identifies the device that created the task. It is kept for
	// client-side diagnostics only.
	DeviceID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the fields required to insert a task.
// Fields are checked in wire order so the first missing one is reported.
func (t *Task) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{FieldID, t.ID},
		{FieldUserID, t.UserID},
		{FieldTitle, t.Title},
	}
	for _, f := range required {
		if f.value == "" {
			return NewValidationError(f.name, "is required", ErrEmptyField)
		}
	}
	return nil
}

