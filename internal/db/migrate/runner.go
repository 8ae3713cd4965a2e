// Package migrate runs database migrations from embedded SQL files using golang-migrate.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"storehub/backend/internal/db"
)

// ErrNoChange is returned when Up/Down has nothing to do (already at target version).
var ErrNoChange = migrate.ErrNoChange

// Run opens a connection for driver and applies migrations in the given direction.
// direction must be "up" or "down". Returns nil when already at the target version.
func Run(driver, dsn, direction string) error {
	if strings.TrimSpace(dsn) == "" {
		return errors.New("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if err := validateDirection(direction); err != nil {
		return err
	}
	sqlDB, err := db.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer sqlDB.Close()
	return Apply(context.Background(), sqlDB, driver, direction)
}

// Apply runs migrations against an already-open handle. The handle stays open and owned by the caller.
func Apply(ctx context.Context, sqlDB *sql.DB, driver, direction string) error {
	if err := validateDirection(direction); err != nil {
		return err
	}
	migrations, err := db.Migrations(driver)
	if err != nil {
		return err
	}
	sourceDriver, err := iofs.New(migrations, ".")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	var dbDriver database.Driver
	switch driver {
	case db.DriverPostgres:
		conn, err := sqlDB.Conn(ctx)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		defer conn.Close()
		dbDriver, err = migratepg.WithConnection(ctx, conn, &migratepg.Config{})
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	case db.DriverSQLite:
		dbDriver, err = migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{})
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// m is not closed: closing would close the caller's handle.
	m, err := migrate.NewWithInstance("iofs", sourceDriver, driver, dbDriver)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func validateDirection(direction string) error {
	if direction != "up" && direction != "down" {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}
	return nil
}
