package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/smartque-backend/internal/logger"
	"github.com/ignatzorin/smartque-backend/internal/mail"
	"github.com/ignatzorin/smartque-backend/internal/models"
	"github.com/ignatzorin/smartque-backend/internal/pkg/apperror"
)

type otpFixture struct {
	svc    *OTPService
	repo   *fakeOTPRepo
	users  *fakeUserRepo
	sender *fakeSender
	clock  *fakeClock
	codes  []string
}

func newOTPFixture(cfg OTPConfig, codes ...string) *otpFixture {
	f := &otpFixture{
		repo:   newFakeOTPRepo(),
		users:  newFakeUserRepo(),
		sender: &fakeSender{},
		clock:  newFakeClock(),
		codes:  codes,
	}
	f.svc = NewOTPService(f.repo, f.users, f.sender, cfg)
	f.svc.now = f.clock.Now
	f.svc.generate = func() (string, error) {
		if len(f.codes) == 0 {
			return "", errors.New("no codes left")
		}
		code := f.codes[0]
		f.codes = f.codes[1:]
		return code, nil
	}
	return f
}

func attemptsRemaining(t *testing.T, err error) int {
	t.Helper()
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "ожидалась AppError, получено %v", err)
	require.Equal(t, apperror.ErrCodeInvalidCode, appErr.Code)
	require.NotNil(t, appErr.AttemptsRemaining)
	return *appErr.AttemptsRemaining
}

func TestOTPService_RequestThenVerify(t *testing.T) {
	f := newOTPFixture(OTPConfig{}, "123456")
	ctx := context.Background()

	res, err := f.svc.RequestOTP(ctx, "  User@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, 600, res.ExpiresIn)
	assert.Empty(t, res.Code)
	require.Equal(t, 1, f.sender.count())
	assert.Equal(t, "user@example.com", f.sender.sent[0].to)
	assert.Contains(t, f.sender.sent[0].html, "123456")

	require.NoError(t, f.svc.VerifyOTP(ctx, "user@example.com", "123456"))

	rec, err := f.repo.Latest(ctx, "user@example.com")
	require.NoError(t, err)
	assert.True(t, rec.Verified)
	assert.Equal(t, 0, rec.Attempts)
}

func TestOTPService_ExpiredCodeIsRemoved(t *testing.T) {
	f := newOTPFixture(OTPConfig{}, "123456")
	ctx := context.Background()

	_, err := f.svc.RequestOTP(ctx, "user@example.com")
	require.NoError(t, err)

	f.clock.Advance(10*time.Minute + time.Second)

	err = f.svc.VerifyOTP(ctx, "user@example.com", "123456")
	assert.ErrorIs(t, err, apperror.ErrOTPExpired)
	assert.Equal(t, 0, f.repo.count("user@example.com"))

	err = f.svc.VerifyOTP(ctx, "user@example.com", "123456")
	assert.ErrorIs(t, err, apperror.ErrOTPNotFound)
}

func TestOTPService_ValidExactlyAtExpiry(t *testing.T) {
	f := newOTPFixture(OTPConfig{}, "123456")
	ctx := context.Background()

	_, err := f.svc.RequestOTP(ctx, "user@example.com")
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	assert.NoError(t, f.svc.VerifyOTP(ctx, "user@example.com", "123456"))
}

func TestOTPService_WrongCodeAttemptsRemaining(t *testing.T) {
	f := newOTPFixture(OTPConfig{}, "123456")
	ctx := context.Background()

	_, err := f.svc.RequestOTP(ctx, "user@example.com")
	require.NoError(t, err)

	for _, want := range []int{2, 1, 0, -1} {
		err := f.svc.VerifyOTP(ctx, "user@example.com", "000000")
		assert.Equal(t, want, attemptsRemaining(t, err))
	}

	// без блокировки верный код всё ещё принимается
	assert.NoError(t, f.svc.VerifyOTP(ctx, "user@example.com", "123456"))
}

func TestOTPService_LockoutEnabled(t *testing.T) {
	f := newOTPFixture(OTPConfig{LockoutEnabled: true, MaxAttempts: 3}, "123456")
	ctx := context.Background()

	_, err := f.svc.RequestOTP(ctx, "user@example.com")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		err := f.svc.VerifyOTP(ctx, "user@example.com", "000000")
		assert.Equal(t, apperror.ErrCodeInvalidCode, apperror.CodeOf(err))
	}

	err = f.svc.VerifyOTP(ctx, "user@example.com", "123456")
	assert.ErrorIs(t, err, apperror.ErrTooManyAttempts)
}

func TestOTPService_ReRequestInvalidatesPreviousCode(t *testing.T) {
	f := newOTPFixture(OTPConfig{}, "111111", "222222")
	ctx := context.Background()

	_, err := f.svc.RequestOTP(ctx, "user@example.com")
	require.NoError(t, err)
	_, err = f.svc.RequestOTP(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, f.repo.count("user@example.com"))

	err = f.svc.VerifyOTP(ctx, "user@example.com", "111111")
	assert.Equal(t, 2, attemptsRemaining(t, err))

	assert.NoError(t, f.svc.VerifyOTP(ctx, "user@example.com", "222222"))
}

func TestOTPService_RequestRejectsRegisteredEmail(t *testing.T) {
	f := newOTPFixture(OTPConfig{}, "123456")
	ctx := context.Background()
	require.NoError(t, f.users.Create(ctx, nil, &models.User{Email: "user@example.com"}))

	_, err := f.svc.RequestOTP(ctx, "user@example.com")
	assert.ErrorIs(t, err, apperror.ErrEmailRegistered)
	assert.Equal(t, 0, f.sender.count())
}

func TestOTPService_RequestValidatesEmail(t *testing.T) {
	f := newOTPFixture(OTPConfig{}, "123456")

	for _, email := range []string{"", "no-at-sign.com", "user@nodot"} {
		_, err := f.svc.RequestOTP(context.Background(), email)
		assert.True(t, apperror.IsValidation(err), email)
	}
}

func TestOTPService_DeliveryFailureKeepsRecord(t *testing.T) {
	f := newOTPFixture(OTPConfig{}, "123456")
	f.sender.err = errors.New("smtp down")
	ctx := context.Background()

	_, err := f.svc.RequestOTP(ctx, "user@example.com")
	assert.ErrorIs(t, err, apperror.ErrDeliveryFailed)
	assert.Equal(t, 1, f.repo.count("user@example.com"))

	// код всё равно можно подтвердить
	assert.NoError(t, f.svc.VerifyOTP(ctx, "user@example.com", "123456"))
}

func TestOTPService_EchoCodeInDevelopment(t *testing.T) {
	f := newOTPFixture(OTPConfig{EchoCode: true}, "654321")

	res, err := f.svc.RequestOTP(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "654321", res.Code)
}

func TestOTPService_VerifyValidatesCodeFormat(t *testing.T) {
	f := newOTPFixture(OTPConfig{}, "123456")

	for _, code := range []string{"", "12345", "1234567", "abcdef"} {
		err := f.svc.VerifyOTP(context.Background(), "user@example.com", code)
		assert.True(t, apperror.IsValidation(err), code)
	}
}

func TestOTPService_VerifyWithoutRequest(t *testing.T) {
	f := newOTPFixture(OTPConfig{})

	err := f.svc.VerifyOTP(context.Background(), "user@example.com", "123456")
	assert.ErrorIs(t, err, apperror.ErrOTPNotFound)
}

func TestOTPService_PurgeExpired(t *testing.T) {
	f := newOTPFixture(OTPConfig{}, "111111", "222222")
	ctx := context.Background()

	_, err := f.svc.RequestOTP(ctx, "a@example.com")
	require.NoError(t, err)
	f.clock.Advance(5 * time.Minute)
	_, err = f.svc.RequestOTP(ctx, "b@example.com")
	require.NoError(t, err)

	f.clock.Advance(6 * time.Minute)
	n, err := f.svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 0, f.repo.count("a@example.com"))
	assert.Equal(t, 1, f.repo.count("b@example.com"))
}

func TestGenerateOTPCode_SixDigitsInRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code, err := generateOTPCode()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

// captureLogs подменяет общий логгер production-логгером с хуком на время теста.
func captureLogs(t *testing.T) *logtest.Hook {
	t.Helper()
	prev := logger.Log
	logger.Init("production")
	t.Cleanup(func() { logger.Log = prev })
	return logtest.NewLocal(logger.Log)
}

func TestOTPService_ConsoleSenderLogsCode(t *testing.T) {
	hook := captureLogs(t)
	f := newOTPFixture(OTPConfig{}, "482913")
	f.svc.sender = mail.NewConsoleSender()

	res, err := f.svc.RequestOTP(context.Background(), "a@b.co")
	require.NoError(t, err)
	assert.Empty(t, res.Code)

	var codeLogged, bodyLogged bool
	for _, entry := range hook.AllEntries() {
		if entry.Data["code"] == "482913" {
			codeLogged = true
		}
		if body, ok := entry.Data["body"].(string); ok && strings.Contains(body, "482913") {
			bodyLogged = true
		}
	}
	assert.True(t, codeLogged, "код должен попасть в лог без SMTP")
	assert.True(t, bodyLogged, "письмо должно попасть в лог без SMTP")
}

func TestOTPService_RealSenderDoesNotLogCode(t *testing.T) {
	hook := captureLogs(t)
	f := newOTPFixture(OTPConfig{}, "482913")

	_, err := f.svc.RequestOTP(context.Background(), "a@b.co")
	require.NoError(t, err)

	for _, entry := range hook.AllEntries() {
		_, hasCode := entry.Data["code"]
		assert.False(t, hasCode)
	}
}
