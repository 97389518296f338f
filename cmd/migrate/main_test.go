package main

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMigrationPart(t *testing.T) {
	content := `
-- +migrate Up
CREATE TABLE cart_items (id int);
ALTER TABLE cart_items ADD COLUMN size text;

-- +migrate Down
DROP TABLE cart_items;
`
	t.Run("Extract Up", func(t *testing.T) {
		up := extractMigrationPart(content, "Up")
		assert.Contains(t, up, "CREATE TABLE cart_items")
		assert.Contains(t, up, "ALTER TABLE cart_items")
		assert.NotContains(t, up, "DROP TABLE cart_items")
		assert.NotContains(t, up, "-- +migrate Up")
	})

	t.Run("Extract Down", func(t *testing.T) {
		down := extractMigrationPart(content, "Down")
		assert.Contains(t, down, "DROP TABLE cart_items")
		assert.NotContains(t, down, "CREATE TABLE cart_items")
	})
}

func TestRepoMigrationsAreWellFormed(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "..", "migrations", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		content, err := os.ReadFile(f)
		require.NoError(t, err)
		assert.NotEmpty(t, extractMigrationPart(string(content), "Up"), f)
		assert.NotEmpty(t, extractMigrationPart(string(content), "Down"), f)
	}
}

func writeMigration(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunMigrationsUp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tmpDir := t.TempDir()
	applied := writeMigration(t, tmpDir, "0001_init.sql", "-- +migrate Up\nCREATE TABLE users (id int);")
	pending := writeMigration(t, tmpDir, "0002_cart.sql", "-- +migrate Up\nCREATE TABLE cart_items (id int);")

	mock.ExpectQuery("SELECT EXISTS.*schema_migrations").
		WithArgs("0001_init.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS.*schema_migrations").
		WithArgs("0002_cart.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("CREATE TABLE cart_items").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs("0002_cart.sql").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, runMigrationsUp(db, []string{applied, pending}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrationsDown(t *testing.T) {
	tmpDir := t.TempDir()
	file := writeMigration(t, tmpDir, "0001_init.sql", "-- +migrate Up\nCREATE TABLE users (id int);\n-- +migrate Down\nDROP TABLE users;")

	t.Run("Rolls back latest", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT version FROM schema_migrations").
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("0001_init.sql"))
		mock.ExpectExec("DROP TABLE users").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DELETE FROM schema_migrations").
			WithArgs("0001_init.sql").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, runMigrationsDown(db, []string{file}))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Nothing applied", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT version FROM schema_migrations").WillReturnError(sql.ErrNoRows)

		assert.NoError(t, runMigrationsDown(db, []string{file}))
	})

	t.Run("Missing file", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT version FROM schema_migrations").
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("0009_gone.sql"))

		assert.ErrorContains(t, runMigrationsDown(db, []string{file}), "migration file not found")
	})
}

func TestRun_UnknownMode(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorContains(t, run(db, "sideways", t.TempDir()), "unknown mode")
}
