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

var (
	// ErrOTPNotFound возвращается, когда для email нет ни одной записи.
	ErrOTPNotFound = errors.New("otp record not found")
	// ErrOTPNotVerified возвращается, если подтверждённой непросроченной записи нет.
	ErrOTPNotVerified = errors.New("otp record not verified")
)

const otpColumns = `id, email, code, verified, attempts, expires_at, created_at`

// OTPRepository отвечает за таблицу otp_records.
type OTPRepository struct {
	db *sqlx.DB
}

// NewOTPRepository создаёт экземпляр репозитория.
func NewOTPRepository(db *sqlx.DB) *OTPRepository {
	return &OTPRepository{db: db}
}

// Create сохраняет новую запись и заполняет id и created_at.
func (r *OTPRepository) Create(ctx context.Context, rec *models.OTPRecord) error {
	query := `
		INSERT INTO otp_records (email, code, verified, attempts, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		rec.Email, rec.Code, rec.Verified, rec.Attempts, rec.ExpiresAt,
	).Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return fmt.Errorf("otp repository: create %w", err)
	}
	return nil
}

// Latest возвращает последнюю по created_at запись для email.
func (r *OTPRepository) Latest(ctx context.Context, email string) (*models.OTPRecord, error) {
	var rec models.OTPRecord
	query := `
		SELECT ` + otpColumns + `
		FROM otp_records
		WHERE email = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &rec, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOTPNotFound
		}
		return nil, fmt.Errorf("otp repository: latest %w", err)
	}
	return &rec, nil
}

// IncrementAttempts атомарно увеличивает счётчик попыток и возвращает новое значение.
func (r *OTPRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	var attempts int
	query := `UPDATE otp_records SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts`
	if err := r.db.GetContext(ctx, &attempts, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrOTPNotFound
		}
		return 0, fmt.Errorf("otp repository: increment attempts %w", err)
	}
	return attempts, nil
}

// MarkVerified отмечает запись как подтверждённую.
func (r *OTPRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE otp_records SET verified = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("otp repository: mark verified %w", err)
	}
	return common.RowsAffected(res, ErrOTPNotFound)
}

// Delete удаляет одну запись.
func (r *OTPRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM otp_records WHERE id = $1`, id); err != nil {
		return fmt.Errorf("otp repository: delete %w", err)
	}
	return nil
}

// DeleteByEmail удаляет все записи для email.
func (r *OTPRepository) DeleteByEmail(ctx context.Context, email string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM otp_records WHERE email = $1`, email); err != nil {
		return fmt.Errorf("otp repository: delete by email %w", err)
	}
	return nil
}

// DeleteExpired удаляет все записи, истёкшие к моменту now.
func (r *OTPRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM otp_records WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("otp repository: delete expired %w", err)
	}
	return res.RowsAffected()
}

// ConsumeVerified в одной транзакции блокирует подтверждённую непросроченную запись,
// выполняет fn и удаляет все записи для email. Без такой записи возвращает ErrOTPNotVerified.
func (r *OTPRepository) ConsumeVerified(ctx context.Context, email string, now time.Time, fn func(ctx context.Context, q common.Querier) error) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var id uuid.UUID
		query := `
			SELECT id
			FROM otp_records
			WHERE email = $1 AND verified = TRUE AND expires_at > $2
			ORDER BY created_at DESC
			LIMIT 1
			FOR UPDATE
		`
		if err := tx.GetContext(ctx, &id, query, email, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrOTPNotVerified
			}
			return fmt.Errorf("otp repository: lock verified %w", err)
		}

		if err := fn(ctx, tx); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM otp_records WHERE email = $1`, email); err != nil {
			return fmt.Errorf("otp repository: consume %w", err)
		}
		return nil
	})
}
