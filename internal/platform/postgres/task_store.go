package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/tasksync-api/internal/domain"
	"github.com/phrazzld/tasksync-api/internal/platform/logger"
	"github.com/phrazzld/tasksync-api/internal/redact"
	"github.com/phrazzld/tasksync-api/internal/store"
)

const taskColumns = `id, user_id, title, description, due_date, is_completed, device_id, created_at, updated_at`

// PostgresTaskStore implements the store.TaskStore interface
// on one leased PostgreSQL connection.
type PostgresTaskStore struct {
	db     store.Conn
	logger *slog.Logger
}

// NewPostgresTaskStore creates a task store bound to db, normally the
// connection of a single request's lease.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.Conn, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task    domain.Task
		dueDate sql.NullTime
	)
	err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&dueDate,
		&task.IsCompleted,
		&task.DeviceID,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if dueDate.Valid {
		d := dueDate.Time.UTC()
		task.DueDate = &d
	}
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()
	return &task, nil
}

// ListByOwner implements store.TaskStore.ListByOwner.
// Ties on created_at fall back to insertion order, newest first.
func (s *PostgresTaskStore) ListByOwner(ctx context.Context, userID string) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		log.Error("failed to query tasks",
			slog.String("error", redact.Error(err)),
			slog.String("user_id", userID))
		return nil, store.NewStoreError("task", "list", "failed to query tasks", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row",
				slog.String("error", redact.Error(err)),
				slog.String("user_id", userID))
			return nil, store.NewStoreError("task", "list", "failed to read task", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating task rows",
			slog.String("error", redact.Error(err)),
			slog.String("user_id", userID))
		return nil, store.NewStoreError("task", "list", "failed to read tasks", MapError(err))
	}

	log.Debug("tasks listed",
		slog.String("user_id", userID),
		slog.Int("count", len(tasks)))
	return tasks, nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *PostgresTaskStore) GetByID(ctx context.Context, taskID string) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_id", taskID))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task",
			slog.String("error", redact.Error(err)),
			slog.String("task_id", taskID))
		return nil, store.NewStoreError("task", "get", "failed to get task", MapError(err))
	}
	return task, nil
}

// Create implements store.TaskStore.Create.
// Both timestamps come from the same now() so a new task has
// created_at == updated_at.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Debug("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID))
		return err
	}

	query := `
		INSERT INTO tasks (id, user_id, title, description, due_date, is_completed, device_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING created_at, updated_at
	`

	var createdAt, updatedAt time.Time
	err := s.db.QueryRowContext(
		ctx,
		query,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		nullTime(task.DueDate),
		task.IsCompleted,
		task.DeviceID,
	).Scan(&createdAt, &updatedAt)

	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("task id already exists",
				slog.String("task_id", task.ID),
				slog.String("user_id", task.UserID))
			return store.ErrTaskExists
		}

		log.Error("failed to create task",
			slog.String("error", redact.Error(err)),
			slog.String("task_id", task.ID),
			slog.String("user_id", task.UserID))
		return store.NewStoreError("task", "create", "failed to insert task", MapError(err))
	}

	task.CreatedAt = createdAt.UTC()
	task.UpdatedAt = updatedAt.UTC()

	log.Info("task created",
		slog.String("task_id", task.ID),
		slog.String("user_id", task.UserID),
		slog.String("device_id", task.DeviceID))
	return nil
}

// Update implements store.TaskStore.Update.
// The single UPDATE runs in a transaction; when it matches no row the
// transaction is rolled back and ErrTaskNotFound is returned.
func (s *PostgresTaskStore) Update(ctx context.Context, taskID string, patch domain.TaskPatch) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if patch.IsEmpty() {
		return store.ErrNoFields
	}
	if err := patch.Validate(); err != nil {
		return err
	}

	query, args := buildUpdateQuery(taskID, patch)

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		return CheckRowsAffected(result, store.ErrTaskNotFound)
	})
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			log.Debug("task not found for update", slog.String("task_id", taskID))
			return store.ErrTaskNotFound
		}
		log.Error("failed to update task",
			slog.String("error", redact.Error(err)),
			slog.String("task_id", taskID),
			slog.Any("fields", patch.Fields()))
		return store.NewStoreError("task", "update", "failed to update task", MapError(err))
	}

	log.Info("task updated",
		slog.String("task_id", taskID),
		slog.Any("fields", patch.Fields()))
	return nil
}

// buildUpdateQuery renders an UPDATE naming only the fields set in patch.
// updated_at always moves strictly forward, even when the clock has not.
func buildUpdateQuery(taskID string, patch domain.TaskPatch) (string, []any) {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 5)

	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title.Set {
		set(domain.FieldTitle, patch.Title.Value)
	}
	if patch.Description.Set {
		set(domain.FieldDescription, patch.Description.Value)
	}
	if patch.DueDate.Set {
		set(domain.FieldDueDate, nullTime(patch.DueDate.Value))
	}
	if patch.IsCompleted.Set {
		set(domain.FieldIsCompleted, patch.IsCompleted.Value)
	}
	sets = append(sets, "updated_at = GREATEST(clock_timestamp(), updated_at + interval '1 microsecond')")

	args = append(args, taskID)
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	return query, args
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
