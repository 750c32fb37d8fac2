package models

import (
	"time"

	"github.com/google/uuid"
)

// OTPRecord — одноразовый код подтверждения email.
// На один email авторитетна только последняя запись.
type OTPRecord struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Code      string    `db:"code" json:"-"`
	Verified  bool      `db:"verified" json:"verified"`
	Attempts  int       `db:"attempts" json:"attempts"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// IsExpired сообщает, истёк ли код к моменту now.
func (r *OTPRecord) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
