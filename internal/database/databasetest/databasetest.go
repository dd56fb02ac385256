// Package databasetest provides a migrated in-memory SQLite database for
// tests of the repository and service layers.
package databasetest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/iliyamo/kids-checkin/internal/database"
)

// New opens a fresh in-memory database with the full schema applied.  The
// database is closed when the test finishes.
func New(t testing.TB) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db, database.SQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
