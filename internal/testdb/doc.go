// Package testdb provides helpers for integration tests that need a real
// PostgreSQL database. Tests that use it are guarded by the "integration"
// build tag and skip themselves when DATABASE_URL is unset.
package testdb
