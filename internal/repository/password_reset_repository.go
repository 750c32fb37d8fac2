package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/smartque-backend/internal/models"
	"github.com/ignatzorin/smartque-backend/internal/repository/common"
)

// ErrResetTokenNotFound возвращается, если токен не найден, использован или истёк.
var ErrResetTokenNotFound = errors.New("password reset token not found")

// PasswordResetRepository отвечает за таблицу password_resets.
type PasswordResetRepository struct {
	db *sqlx.DB
}

// NewPasswordResetRepository создаёт экземпляр репозитория.
func NewPasswordResetRepository(db *sqlx.DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// Create сохраняет хеш токена сброса.
func (r *PasswordResetRepository) Create(ctx context.Context, reset *models.PasswordReset) error {
	query := `
		INSERT INTO password_resets (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(ctx, query, reset.UserID, reset.TokenHash, reset.ExpiresAt).
		Scan(&reset.ID, &reset.CreatedAt); err != nil {
		return fmt.Errorf("password reset repository: create %w", err)
	}
	return nil
}

// GetActive возвращает неиспользованный непросроченный токен по хешу.
func (r *PasswordResetRepository) GetActive(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordReset, error) {
	var reset models.PasswordReset
	query := `
		SELECT id, user_id, token_hash, expires_at, used_at, created_at
		FROM password_resets
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > $2
	`
	if err := r.db.GetContext(ctx, &reset, query, tokenHash, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResetTokenNotFound
		}
		return nil, fmt.Errorf("password reset repository: get active %w", err)
	}
	return &reset, nil
}

// Consume помечает токен использованным и меняет хеш пароля в одной транзакции.
// Повторное использование токена возвращает ErrResetTokenNotFound.
func (r *PasswordResetRepository) Consume(ctx context.Context, resetID, userID uuid.UUID, passwordHash string) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE password_resets SET used_at = NOW() WHERE id = $1 AND used_at IS NULL`, resetID)
		if err != nil {
			return fmt.Errorf("password reset repository: mark used %w", err)
		}
		if err := common.RowsAffected(res, ErrResetTokenNotFound); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, userID, passwordHash)
		if err != nil {
			return fmt.Errorf("password reset repository: update password %w", err)
		}
		return common.RowsAffected(res, ErrUserNotFound)
	})
}

// DeleteExpired удаляет истёкшие и использованные токены.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM password_resets WHERE expires_at < $1 OR used_at IS NOT NULL`, now)
	if err != nil {
		return 0, fmt.Errorf("password reset repository: delete expired %w", err)
	}
	return res.RowsAffected()
}
