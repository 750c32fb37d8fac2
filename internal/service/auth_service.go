package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/smartque-backend/internal/goroutine"
	"github.com/ignatzorin/smartque-backend/internal/logger"
	"github.com/ignatzorin/smartque-backend/internal/mail"
	"github.com/ignatzorin/smartque-backend/internal/models"
	"github.com/ignatzorin/smartque-backend/internal/pkg/apperror"
	"github.com/ignatzorin/smartque-backend/internal/repository"
	"github.com/ignatzorin/smartque-backend/internal/repository/common"
	"github.com/ignatzorin/smartque-backend/internal/validation"
)

const (
	defaultResetTTL = time.Hour
	resetTokenBytes = 32
)

// UserRepository описывает зависимости AuthService от таблицы пользователей.
type UserRepository interface {
	Create(ctx context.Context, q common.Querier, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// PasswordResetRepository описывает хранилище токенов сброса пароля.
type PasswordResetRepository interface {
	Create(ctx context.Context, reset *models.PasswordReset) error
	GetActive(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordReset, error)
	Consume(ctx context.Context, resetID, userID uuid.UUID, passwordHash string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RegistrationGate даёт доступ к подтверждённому коду при регистрации.
type RegistrationGate interface {
	ConsumeForRegistration(ctx context.Context, email string, fn func(ctx context.Context, q common.Querier) error) error
	Discard(ctx context.Context, email string) error
}

// AuthConfig задаёт параметры сброса пароля.
type AuthConfig struct {
	ResetURLBase string
	ResetTTL     time.Duration
}

// AuthService инкапсулирует бизнес-логику регистрации и аутентификации.
type AuthService struct {
	users        UserRepository
	resets       PasswordResetRepository
	gate         RegistrationGate
	tokenManager *TokenManager
	sender       mail.Sender
	cfg          AuthConfig
	now          func() time.Time
	// dispatch запускает фоновую отправку письма.
	dispatch func(fn func())
}

// RegisterInput содержит данные пользователя при регистрации.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// LoginInput содержит данные для входа.
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult возвращает итог регистрации или авторизации.
type AuthResult struct {
	User  *models.User
	Token string
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(users UserRepository, resets PasswordResetRepository, gate RegistrationGate, tokenManager *TokenManager, sender mail.Sender, cfg AuthConfig) *AuthService {
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = defaultResetTTL
	}
	return &AuthService{
		users:        users,
		resets:       resets,
		gate:         gate,
		tokenManager: tokenManager,
		sender:       sender,
		cfg:          cfg,
		now:          time.Now,
		dispatch:     goroutine.SafeGo,
	}
}

// Register создаёт пользователя с подтверждённым email и выпускает токен.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := validation.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if email == "" || in.Password == "" || name == "" {
		return nil, apperror.Validation("email, пароль и имя обязательны")
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if err := validation.ValidateName(name); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось захешировать пароль")
	}

	user := &models.User{
		Email:           email,
		PasswordHash:    string(passHash),
		Name:            name,
		Role:            models.RoleUser,
		IsEmailVerified: true,
	}

	err = s.gate.ConsumeForRegistration(ctx, email, func(ctx context.Context, q common.Querier) error {
		return s.users.Create(ctx, q, user)
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			if derr := s.gate.Discard(ctx, email); derr != nil {
				logger.Log.WithError(derr).WithField("email", email).Warn("auth service: не удалось удалить коды подтверждения")
			}
			return nil, apperror.ErrEmailRegistered
		}
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось зарегистрировать пользователя")
	}

	token, err := s.tokenManager.Issue(user)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось выпустить токен")
	}

	logger.Log.WithFields(logrus.Fields{"user_id": user.ID, "email": email}).Info("auth service: пользователь зарегистрирован")

	return &AuthResult{User: user, Token: token}, nil
}

// Login проверяет пароль и выпускает токен.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := validation.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, apperror.Validation("email и пароль обязательны")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось выполнить вход")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}

	token, err := s.tokenManager.Issue(user)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось выпустить токен")
	}

	return &AuthResult{User: user, Token: token}, nil
}

// Me возвращает профиль пользователя.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить пользователя")
	}
	return user, nil
}

// ForgotPassword создаёт токен сброса и отправляет письмо в фоне.
// Результат не зависит от того, зарегистрирован ли email.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return apperror.Validation(err.Error())
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			logger.Log.WithField("email", email).Debug("auth service: сброс пароля для незарегистрированного email")
			return nil
		}
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось обработать запрос")
	}

	token, tokenHash, err := newResetToken()
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось обработать запрос")
	}

	reset := &models.PasswordReset{
		UserID:    user.ID,
		TokenHash: tokenHash,
		ExpiresAt: s.now().Add(s.cfg.ResetTTL),
	}
	if err := s.resets.Create(ctx, reset); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось обработать запрос")
	}

	link := s.resetLink(token)
	s.dispatch(func() {
		subject, body, err := mail.ResetEmail(user.Name, link, s.cfg.ResetTTL)
		if err == nil {
			err = s.sender.Send(context.Background(), user.Email, subject, body)
		}
		if err != nil {
			logger.Log.WithError(err).WithField("user_id", user.ID).Error("auth service: не удалось отправить письмо для сброса пароля")
		}
	})

	return nil
}

// ResetPassword меняет пароль по одноразовому токену.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperror.Validation("токен обязателен")
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return apperror.Validation(err.Error())
	}

	reset, err := s.resets.GetActive(ctx, hashResetToken(token), s.now())
	if err != nil {
		if errors.Is(err, repository.ErrResetTokenNotFound) {
			return apperror.ErrInvalidToken
		}
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сбросить пароль")
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось захешировать пароль")
	}

	if err := s.resets.Consume(ctx, reset.ID, reset.UserID, string(passHash)); err != nil {
		if errors.Is(err, repository.ErrResetTokenNotFound) || errors.Is(err, repository.ErrUserNotFound) {
			return apperror.ErrInvalidToken
		}
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сбросить пароль")
	}

	logger.Log.WithField("user_id", reset.UserID).Info("auth service: пароль изменён")
	return nil
}

// PurgeExpiredResets удаляет использованные и просроченные токены сброса.
func (s *AuthService) PurgeExpiredResets(ctx context.Context) (int64, error) {
	n, err := s.resets.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("auth service: purge resets: %w", err)
	}
	return n, nil
}

func (s *AuthService) resetLink(token string) string {
	u, err := url.Parse(s.cfg.ResetURLBase)
	if err != nil {
		return s.cfg.ResetURLBase + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func newResetToken() (string, string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("reset token: %w", err)
	}
	token := hex.EncodeToString(buf)
	return token, hashResetToken(token), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
