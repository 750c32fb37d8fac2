package common

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Querier — общий интерфейс *sqlx.DB и *sqlx.Tx, чтобы репозитории работали и внутри транзакции.
type Querier interface {
	sqlx.ExtContext
}

// WithTransaction выполняет функцию внутри транзакции с правильной обработкой ошибок
func WithTransaction(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// RowsAffected возвращает ErrNotFound, если запрос не затронул ни одной строки.
func RowsAffected(res interface{ RowsAffected() (int64, error) }, notFoundErr error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if notFoundErr != nil {
			return notFoundErr
		}
		return ErrNotFound
	}
	return nil
}
