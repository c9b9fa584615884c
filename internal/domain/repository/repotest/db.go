// Package repotest provides throwaway databases for tests.
package repotest

import (
	"context"

	"exoplanet_service/internal/domain/repository"

	"github.com/jmoiron/sqlx"
)

// TestingT is the subset of *testing.T the helpers need.
type TestingT interface {
	Fatalf(format string, args ...any)
	Cleanup(func())
	Helper()
}

// NewDB opens a migrated in-memory SQLite database that is closed when the test ends.
func NewDB(t TestingT) *sqlx.DB {
	t.Helper()

	db, err := repository.Open(repository.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := repository.Migrate(context.Background(), db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// CountRows returns the number of rows in table.
func CountRows(t TestingT, db *sqlx.DB, table string) int {
	t.Helper()

	var n int
	if err := db.Get(&n, "SELECT COUNT(*) FROM "+table); err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}
