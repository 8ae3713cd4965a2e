// Package dbtest provides migrated in-memory SQLite databases for repository tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"storehub/backend/internal/db"
	"storehub/backend/internal/db/migrate"
)

// Open returns a fresh in-memory SQLite database with all migrations applied.
// The database is closed when the test ends.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	sqlDB, err := db.Open(db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := migrate.Apply(context.Background(), sqlDB, db.DriverSQLite, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return sqlDB
}
