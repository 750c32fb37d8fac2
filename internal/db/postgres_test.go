package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMigration(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestListMigrations_SortedSQLOnly(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "002_b.sql", "SELECT 2;")
	writeMigration(t, dir, "001_a.sql", "SELECT 1;")
	writeMigration(t, dir, "notes.md", "не миграция")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0o700))

	names, err := listMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.sql", "002_b.sql"}, names)
}

func TestRunMigrations_AppliesPendingOnly(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001_a.sql", "CREATE TABLE a (id INT);")
	writeMigration(t, dir, "002_b.sql", "CREATE TABLE b (id INT);")

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	conn := sqlx.NewDb(mockDB, "postgres")

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))

	// 001 уже применена
	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM schema_migrations WHERE name = \$1`).
		WithArgs("001_a.sql").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	// 002 ещё нет
	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM schema_migrations WHERE name = \$1`).
		WithArgs("002_b.sql").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`CREATE TABLE b`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("002_b.sql").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, RunMigrations(context.Background(), conn, dir))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_MissingDir(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	conn := sqlx.NewDb(mockDB, "postgres")

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).WillReturnResult(sqlmock.NewResult(0, 0))

	err = RunMigrations(context.Background(), conn, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
