package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/smartque-backend/internal/logger"
	"github.com/ignatzorin/smartque-backend/internal/mail"
	"github.com/ignatzorin/smartque-backend/internal/models"
	"github.com/ignatzorin/smartque-backend/internal/pkg/apperror"
	"github.com/ignatzorin/smartque-backend/internal/repository"
	"github.com/ignatzorin/smartque-backend/internal/repository/common"
	"github.com/ignatzorin/smartque-backend/internal/validation"
)

const (
	defaultOTPTTL         = 10 * time.Minute
	defaultOTPMaxAttempts = 3
	otpMin                = 100000
	otpSpan               = 900000
)

// OTPRepository описывает хранилище одноразовых кодов.
type OTPRepository interface {
	Create(ctx context.Context, rec *models.OTPRecord) error
	Latest(ctx context.Context, email string) (*models.OTPRecord, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByEmail(ctx context.Context, email string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	ConsumeVerified(ctx context.Context, email string, now time.Time, fn func(ctx context.Context, q common.Querier) error) error
}

// EmailChecker сообщает, зарегистрирован ли email.
type EmailChecker interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// OTPConfig задаёт параметры кодов подтверждения.
type OTPConfig struct {
	TTL            time.Duration
	MaxAttempts    int
	LockoutEnabled bool
	// EchoCode возвращает код в ответе. Только для разработки.
	EchoCode bool
}

// OTPRequestResult — итог запроса кода.
type OTPRequestResult struct {
	ExpiresIn int
	Code      string
}

// OTPService управляет жизненным циклом одноразовых кодов подтверждения email.
type OTPService struct {
	repo     OTPRepository
	users    EmailChecker
	sender   mail.Sender
	cfg      OTPConfig
	now      func() time.Time
	generate func() (string, error)
}

// NewOTPService создаёт сервис кодов подтверждения.
func NewOTPService(repo OTPRepository, users EmailChecker, sender mail.Sender, cfg OTPConfig) *OTPService {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultOTPTTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultOTPMaxAttempts
	}
	return &OTPService{
		repo:     repo,
		users:    users,
		sender:   sender,
		cfg:      cfg,
		now:      time.Now,
		generate: generateOTPCode,
	}
}

// RequestOTP создаёт новый код для email, отменяя все предыдущие, и отправляет письмо.
// При ошибке доставки запись остаётся в хранилище.
func (s *OTPService) RequestOTP(ctx context.Context, email string) (*OTPRequestResult, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось проверить email")
	}
	if exists {
		return nil, apperror.ErrEmailRegistered
	}

	if err := s.repo.DeleteByEmail(ctx, email); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось создать код подтверждения")
	}

	code, err := s.generate()
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось создать код подтверждения")
	}

	rec := &models.OTPRecord{
		Email:     email,
		Code:      code,
		ExpiresAt: s.now().Add(s.cfg.TTL),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось создать код подтверждения")
	}

	subject, body, err := mail.OTPEmail(code, s.cfg.TTL)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось подготовить письмо")
	}
	if err := s.sender.Send(ctx, email, subject, body); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDeliveryFailed, apperror.ErrDeliveryFailed.Message)
	}

	entry := logger.Log.WithFields(logrus.Fields{"email": email, "otp_id": rec.ID})
	if _, consoleOnly := s.sender.(*mail.ConsoleSender); consoleOnly {
		// Письма не уходят, код доступен только в логе
		entry = entry.WithField("code", code)
	}
	entry.Info("otp service: код отправлен")

	res := &OTPRequestResult{ExpiresIn: int(s.cfg.TTL.Seconds())}
	if s.cfg.EchoCode {
		res.Code = code
	}
	return res, nil
}

// VerifyOTP сверяет код с последней выданной записью для email.
// Неверный код увеличивает счётчик попыток; остаток может стать отрицательным, если блокировка выключена.
func (s *OTPService) VerifyOTP(ctx context.Context, email, code string) error {
	email = validation.NormalizeEmail(email)
	if email == "" {
		return apperror.Validation("email обязателен")
	}
	if err := validation.ValidateOTPCode(code); err != nil {
		return apperror.Validation(err.Error())
	}

	rec, err := s.repo.Latest(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrOTPNotFound) {
			return apperror.ErrOTPNotFound
		}
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось проверить код")
	}

	if rec.IsExpired(s.now()) {
		if err := s.repo.Delete(ctx, rec.ID); err != nil {
			logger.Log.WithError(err).WithField("otp_id", rec.ID).Warn("otp service: не удалось удалить просроченный код")
		}
		return apperror.ErrOTPExpired
	}

	if s.cfg.LockoutEnabled && rec.Attempts >= s.cfg.MaxAttempts {
		return apperror.ErrTooManyAttempts
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		attempts, err := s.repo.IncrementAttempts(ctx, rec.ID)
		if err != nil {
			if errors.Is(err, repository.ErrOTPNotFound) {
				return apperror.ErrOTPNotFound
			}
			return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось проверить код")
		}
		logger.Log.WithFields(logrus.Fields{"email": email, "attempts": attempts}).Info("otp service: неверный код")
		return apperror.InvalidCode(s.cfg.MaxAttempts - attempts)
	}

	if err := s.repo.MarkVerified(ctx, rec.ID); err != nil {
		if errors.Is(err, repository.ErrOTPNotFound) {
			return apperror.ErrOTPNotFound
		}
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось подтвердить код")
	}
	return nil
}

// ConsumeForRegistration выполняет fn в одной транзакции с удалением подтверждённого кода.
// Без подтверждённого непросроченного кода возвращает ErrVerificationRequired.
func (s *OTPService) ConsumeForRegistration(ctx context.Context, email string, fn func(ctx context.Context, q common.Querier) error) error {
	email = validation.NormalizeEmail(email)
	err := s.repo.ConsumeVerified(ctx, email, s.now(), fn)
	if errors.Is(err, repository.ErrOTPNotVerified) {
		return apperror.ErrVerificationRequired
	}
	return err
}

// Discard удаляет все коды для email.
func (s *OTPService) Discard(ctx context.Context, email string) error {
	return s.repo.DeleteByEmail(ctx, validation.NormalizeEmail(email))
}

// PurgeExpired удаляет все просроченные коды.
func (s *OTPService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("otp service: purge expired: %w", err)
	}
	return n, nil
}

// generateOTPCode возвращает равномерно распределённый код из [100000, 999999].
func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return "", fmt.Errorf("otp: генерация кода: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}
