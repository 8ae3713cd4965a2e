package db

import (
	"embed"
	"fmt"
	"io/fs"
)

// MigrationFS embeds SQL migration files, one directory per driver.
// Used by the migrate runner (cmd/migrate and AUTO_MIGRATE) to apply migrations.
//
//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var MigrationFS embed.FS

// Migrations returns the migration directory for driver.
func Migrations(driver string) (fs.FS, error) {
	switch driver {
	case DriverPostgres:
		return fs.Sub(MigrationFS, "migrations/postgres")
	case DriverSQLite:
		return fs.Sub(MigrationFS, "migrations/sqlite")
	default:
		return nil, fmt.Errorf("db: no migrations for driver %q", driver)
	}
}
