package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ignatzorin/smartque-backend/internal/models"
	"github.com/ignatzorin/smartque-backend/internal/pkg/apperror"
)

// TokenManager отвечает за выпуск и проверку JWT.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager создаёт менеджер токенов.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue выпускает токен доступа для пользователя.
func (m *TokenManager) Issue(user *models.User) (string, error) {
	now := m.now()
	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(m.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("token manager: не удалось подписать токен: %w", err)
	}
	return signed, nil
}

// Parse извлекает userID и роль из токена. Любая ошибка проверки даёт ErrInvalidToken.
func (m *TokenManager) Parse(token string) (uuid.UUID, string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return uuid.Nil, "", apperror.Wrap(err, apperror.ErrCodeInvalidToken, apperror.ErrInvalidToken.Message)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, "", apperror.Wrap(jwt.ErrTokenInvalidClaims, apperror.ErrCodeInvalidToken, apperror.ErrInvalidToken.Message)
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, "", apperror.Wrap(errors.New("sub claim missing"), apperror.ErrCodeInvalidToken, apperror.ErrInvalidToken.Message)
	}

	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, "", apperror.Wrap(err, apperror.ErrCodeInvalidToken, apperror.ErrInvalidToken.Message)
	}

	role, _ := claims["role"].(string)
	if role == "" {
		role = models.RoleUser
	}

	return userID, role, nil
}
