// Package store defines interfaces for task persistence and connection
// leasing, together with the error taxonomy every implementation returns.
// These interfaces keep handlers independent of PostgreSQL specifics.
package store
