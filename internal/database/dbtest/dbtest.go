// Package dbtest provides a migrated in-memory database for tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/iliyamo/festival-ticketing/internal/database"
)

// New opens a private in-memory SQLite database with the full schema and
// closes it when the test ends.
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
