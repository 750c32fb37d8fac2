package models

import (
	"time"

	"github.com/google/uuid"
)

// Роли пользователей.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User описывает пациента или администратора клиники.
type User struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Email           string    `db:"email" json:"email"`
	PasswordHash    string    `db:"password_hash" json:"-"`
	Name            string    `db:"name" json:"name"`
	Role            string    `db:"role" json:"role"`
	IsEmailVerified bool      `db:"is_email_verified" json:"isEmailVerified"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// IsAdmin сообщает, есть ли у пользователя права администратора.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// PasswordReset хранит хеш одноразового токена сброса пароля.
type PasswordReset struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	UserID    uuid.UUID  `db:"user_id" json:"userId"`
	TokenHash string     `db:"token_hash" json:"-"`
	ExpiresAt time.Time  `db:"expires_at" json:"expiresAt"`
	UsedAt    *time.Time `db:"used_at" json:"usedAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}
