package db

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Errors(t *testing.T) {
	_, err := Open(DriverPostgres, "")
	assert.Error(t, err)

	_, err = Open("mysql", "root@/db")
	assert.Error(t, err)
}

func TestOpen_SQLiteMemory(t *testing.T) {
	sqlDB, err := Open(DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer sqlDB.Close()

	var fk int
	require.NoError(t, sqlDB.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestWithSQLitePragmas(t *testing.T) {
	assert.Equal(t, ":memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", withSQLitePragmas(":memory:"))
	assert.Equal(t, "file:x.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", withSQLitePragmas("file:x.db?mode=rwc"))
	assert.Equal(t, "x.db?_pragma=foreign_keys(0)", withSQLitePragmas("x.db?_pragma=foreign_keys(0)"))
}

func TestMigrations_PerDriver(t *testing.T) {
	for _, driver := range []string{DriverPostgres, DriverSQLite} {
		m, err := Migrations(driver)
		require.NoError(t, err)
		ups, err := fs.Glob(m, "*.up.sql")
		require.NoError(t, err)
		downs, err := fs.Glob(m, "*.down.sql")
		require.NoError(t, err)
		assert.NotEmpty(t, ups, driver)
		assert.Len(t, downs, len(ups), driver)
	}
	_, err := Migrations("mysql")
	assert.Error(t, err)
}
