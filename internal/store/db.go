package store

import (
	"context"
	"database/sql"
)

// DBTX is an interface that abstracts the database access layer.
// It is implemented by *sql.DB, *sql.Conn and *sql.Tx, allowing our code
// to work with a pool, a leased connection or a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxBeginner starts transactions. *sql.DB and *sql.Conn implement it.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Conn is a single leased database connection: it can run statements
// directly or open a transaction on itself.
type Conn interface {
	DBTX
	TxBeginner
}

// Gateway leases connections to the relational store.
type Gateway interface {
	// WithConn leases one connection, runs fn with it, and releases it on
	// every exit path. Lease failures wrap ErrConnection.
	WithConn(ctx context.Context, fn func(ctx context.Context, conn Conn) error) error

	// Ping leases and immediately releases a connection.
	Ping(ctx context.Context) error
}
