package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/ignatzorin/smartque-backend/internal/logger"
)

// migrationsLockID — ключ advisory lock, чтобы несколько инстансов не применяли миграции одновременно.
const migrationsLockID = 727_001

// NewPostgres создаёт подключение к PostgreSQL с заданным DSN.
func NewPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	conn, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: не удалось подключиться: %w", err)
	}

	conn.SetMaxOpenConns(50)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return conn, nil
}

// RunMigrations применяет ещё не выполненные SQL файлы из каталога в лексикографическом порядке.
// Каждая миграция выполняется в своей транзакции и фиксируется в schema_migrations.
func RunMigrations(ctx context.Context, conn *sqlx.DB, migrationsDir string) error {
	if err := initMigrationsTable(ctx, conn); err != nil {
		return fmt.Errorf("postgres: не удалось инициализировать таблицу миграций: %w", err)
	}

	names, err := listMigrations(migrationsDir)
	if err != nil {
		return err
	}

	for _, name := range names {
		applied, err := applyMigration(ctx, conn, migrationsDir, name)
		if err != nil {
			return err
		}
		if applied {
			logger.Log.WithField("migration", name).Info("postgres: миграция применена")
		}
	}

	return nil
}

// listMigrations возвращает отсортированные имена .sql файлов.
func listMigrations(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("postgres: не удалось прочитать каталог миграций: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	return names, nil
}

func initMigrationsTable(ctx context.Context, conn *sqlx.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	_, err := conn.ExecContext(ctx, query)
	return err
}

// applyMigration выполняет миграцию, если она ещё не была применена.
// Проверка и применение идут под advisory lock внутри одной транзакции.
func applyMigration(ctx context.Context, conn *sqlx.DB, dir, name string) (bool, error) {
	sqlBytes, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return false, fmt.Errorf("postgres: не удалось прочитать миграцию %s: %w", name, err)
	}

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("postgres: не удалось начать транзакцию для миграции %s: %w", name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationsLockID); err != nil {
		return false, fmt.Errorf("postgres: не удалось взять блокировку миграций: %w", err)
	}

	var count int
	if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM schema_migrations WHERE name = $1`, name); err != nil {
		return false, fmt.Errorf("postgres: не удалось проверить статус миграции %s: %w", name, err)
	}
	if count > 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
		return false, fmt.Errorf("postgres: не удалось выполнить миграцию %s: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
		return false, fmt.Errorf("postgres: не удалось отметить миграцию %s как выполненную: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("postgres: не удалось зафиксировать миграцию %s: %w", name, err)
	}

	return true, nil
}
