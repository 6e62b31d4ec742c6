// Package postgres implements the store interfaces on PostgreSQL through the
// pgx database/sql driver. Gateway leases one connection per request;
// PostgresTaskStore runs the task queries on that connection; MapError
// translates SQLSTATE codes into store errors.
package postgres
