package common

import (
	"errors"

	"github.com/lib/pq"
)

// Общие ошибки для всех репозиториев
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
)

// uniqueViolation — SQLSTATE нарушения уникального индекса в PostgreSQL.
const uniqueViolation = "23505"

// IsUniqueViolation сообщает, что ошибка вызвана нарушением уникальности.
// constraint можно оставить пустым, чтобы не проверять имя индекса.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
