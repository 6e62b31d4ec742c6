package domain

import "time"

// Optional holds a value that may be omitted from a partial update.
// The zero value is "not set".
type Optional[T any] struct {
	Set   bool
	Value T
}

// Some returns a set Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// TaskPatch names the mutable task fields a partial update changes.
// Fields left unset are never written, so concurrent patches touching
// disjoint fields do not overwrite each other.
type TaskPatch struct {
	Title       Optional[string]
	Description Optional[string]
	// DueDate set to a nil value clears the deadline.
	DueDate     Optional[*time.Time]
	IsCompleted Optional[bool]
}

// IsEmpty reports whether the patch names no fields.
func (p TaskPatch) IsEmpty() bool {
	return !p.Title.Set && !p.Description.Set && !p.DueDate.Set && !p.IsCompleted.Set
}

// Fields returns the names of the fields the patch sets, in column order.
func (p TaskPatch) Fields() []string {
	var fields []string
	if p.Title.Set {
		fields = append(fields, FieldTitle)
	}
	if p.Description.Set {
		fields = append(fields, FieldDescription)
	}
	if p.DueDate.Set {
		fields = append(fields, FieldDueDate)
	}
	if p.IsCompleted.Set {
		fields = append(fields, FieldIsCompleted)
	}
	return fields
}

// Validate rejects values that would break task invariants.
func (p TaskPatch) Validate() error {
	if p.Title.Set && p.Title.Value == "" {
		return NewValidationError(FieldTitle, "cannot be empty", ErrEmptyField)
	}
	return nil
}

// Apply copies the set fields of p onto t. It does not touch timestamps.
func (p TaskPatch) Apply(t *Task) {
	if p.Title.Set {
		t.Title = p.Title.Value
	}
	if p.Description.Set {
		t.Description = p.Description.Value
	}
	if p.DueDate.Set {
		t.DueDate = p.DueDate.Value
	}
	if p.IsCompleted.Set {
		t.IsCompleted = p.IsCompleted.Value
	}
}
