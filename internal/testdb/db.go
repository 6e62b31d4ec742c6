package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/tasksync-api/internal/platform/postgres"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

// TestTimeout defines a default timeout for test database operations.
const TestTimeout = 5 * time.Second

// MigrationTableName is the goose version table used by test databases.
const MigrationTableName = "schema_migrations"

var migrateOnce sync.Once

// GetTestDatabaseURL returns the database URL for tests.
// It checks DATABASE_URL and TASKSYNC_DATABASE_URL in that order.
func GetTestDatabaseURL() string {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		return dbURL
	}
	return os.Getenv("TASKSYNC_DATABASE_URL")
}

// GetTestDBWithT opens the test database with the schema applied.
// It skips the test when no database URL is configured and closes the pool
// when the test finishes.
func GetTestDBWithT(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		t.Skip("DATABASE_URL or TASKSYNC_DATABASE_URL not set - skipping integration test")
	}

	db, err := sql.Open(postgres.DriverName, dbURL)
	require.NoError(t, err, "Failed to open database connection")

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "Database ping failed")

	SetupTestDatabaseSchema(t, db)

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close database connection: %v", err)
		}
	})

	return db
}

// SetupTestDatabaseSchema applies the embedded migrations once per test binary.
func SetupTestDatabaseSchema(t *testing.T, db *sql.DB) {
	t.Helper()

	var err error
	migrateOnce.Do(func() {
		err = ApplyMigrations(db, &testGooseLogger{t: t})
	})
	require.NoError(t, err, "Failed to run migrations")
}

// ApplyMigrations runs the embedded goose migrations against db.
func ApplyMigrations(db *sql.DB, logger goose.Logger) error {
	goose.SetBaseFS(postgres.Migrations)
	goose.SetTableName(MigrationTableName)
	if logger != nil {
		goose.SetLogger(logger)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, postgres.MigrationsDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// CleanupUser removes every task owned by userID when the test finishes.
func CleanupUser(t *testing.T, db *sql.DB, userID string) {
	t.Helper()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
		defer cancel()
		if _, err := db.ExecContext(ctx, "DELETE FROM tasks WHERE user_id = $1", userID); err != nil {
			t.Logf("Warning: failed to clean up tasks for %s: %v", userID, err)
		}
	})
}

// testGooseLogger implements a minimal logger interface for goose
type testGooseLogger struct {
	t *testing.T
}

// Printf implements the required logging method for goose's SetLogger
func (l *testGooseLogger) Printf(format string, v ...any) {
	l.t.Log("Goose: " + strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Fatalf implements the required logging method for goose's SetLogger
func (l *testGooseLogger) Fatalf(format string, v ...any) {
	l.t.Fatal("Goose fatal error: " + strings.TrimSpace(fmt.Sprintf(format, v...)))
}
