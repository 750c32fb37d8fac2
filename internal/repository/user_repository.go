package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/smartque-backend/internal/models"
	"github.com/ignatzorin/smartque-backend/internal/repository/common"
)

var (
	// ErrUserNotFound возвращается, когда запись пользователя не найдена.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists возвращается при попытке зарегистрировать занятый email.
	ErrUserExists = errors.New("user already exists")
)

const userColumns = `id, email, password_hash, name, role, is_email_verified, created_at, updated_at`

// UserRepository отвечает за работу с таблицей users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create создаёт пользователя. q позволяет выполнить вставку внутри чужой транзакции;
// nil означает собственное соединение репозитория.
func (r *UserRepository) Create(ctx context.Context, q common.Querier, user *models.User) error {
	if q == nil {
		q = r.db
	}

	query := `
		INSERT INTO users (email, password_hash, name, role, is_email_verified)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	if err := q.QueryRowxContext(
		ctx, query,
		user.Email, user.PasswordHash, user.Name, user.Role, user.IsEmailVerified,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if common.IsUniqueViolation(err, "") {
			return ErrUserExists
		}
		return fmt.Errorf("user repository: create %w", err)
	}

	return nil
}

// GetByEmail возвращает пользователя по email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by email %w", err)
	}

	return &user, nil
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by id %w", err)
	}

	return &user, nil
}

// ExistsByEmail проверяет, занят ли email.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`
	if err := r.db.GetContext(ctx, &exists, query, email); err != nil {
		return false, fmt.Errorf("user repository: exists by email %w", err)
	}
	return exists, nil
}
