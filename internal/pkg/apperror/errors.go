package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized         ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden            ErrorCode = "FORBIDDEN"
	ErrCodeConflict             ErrorCode = "CONFLICT"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation           ErrorCode = "VALIDATION_ERROR"
	ErrCodeExpired              ErrorCode = "EXPIRED"
	ErrCodeInvalidCode          ErrorCode = "INVALID_CODE"
	ErrCodeVerificationRequired ErrorCode = "VERIFICATION_REQUIRED"
	ErrCodeInvalidToken         ErrorCode = "INVALID_TOKEN"
	ErrCodeTooManyAttempts      ErrorCode = "TOO_MANY_ATTEMPTS"
	ErrCodeDeliveryFailed       ErrorCode = "DELIVERY_FAILED"
	ErrCodeRateLimited          ErrorCode = "RATE_LIMITED"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	// AttemptsRemaining заполняется только для INVALID_CODE.
	AttemptsRemaining *int
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду, чтобы errors.Is работал с предопределёнными значениями.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// Validation создаёт ошибку валидации входных данных.
func Validation(message string) *AppError {
	return New(ErrCodeValidation, message)
}

// InvalidCode создаёт ошибку неверного OTP кода с числом оставшихся попыток.
// Значение может быть отрицательным: блокировка после лимита не обязательна.
func InvalidCode(attemptsRemaining int) *AppError {
	err := New(ErrCodeInvalidCode, "неверный код подтверждения")
	err.AttemptsRemaining = &attemptsRemaining
	return err
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized, ErrCodeInvalidToken:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeValidation, ErrCodeExpired, ErrCodeInvalidCode, ErrCodeVerificationRequired:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeTooManyAttempts, ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeDeliveryFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки приложения или INTERNAL_ERROR для прочих ошибок.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

func IsConflict(err error) bool {
	return CodeOf(err) == ErrCodeConflict
}

var (
	ErrOTPNotFound          = New(ErrCodeNotFound, "запрос на подтверждение для этого email не найден")
	ErrOTPExpired           = New(ErrCodeExpired, "срок действия кода истёк, запросите новый")
	ErrVerificationRequired = New(ErrCodeVerificationRequired, "требуется подтверждение email")
	ErrTooManyAttempts      = New(ErrCodeTooManyAttempts, "превышено число попыток, запросите новый код")
	ErrEmailRegistered      = New(ErrCodeConflict, "email уже зарегистрирован, выполните вход")
	ErrDeliveryFailed       = New(ErrCodeDeliveryFailed, "не удалось отправить письмо с кодом")
	ErrAppointmentNotFound  = New(ErrCodeNotFound, "запись не найдена")
	ErrUserNotFound         = New(ErrCodeNotFound, "пользователь не найден")
	ErrUnauthorized         = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden            = New(ErrCodeForbidden, "недостаточно прав")
	ErrInvalidCredentials   = New(ErrCodeUnauthorized, "неверный email или пароль")
	ErrInvalidToken         = New(ErrCodeInvalidToken, "токен невалиден или истёк")
	ErrRateLimited          = New(ErrCodeRateLimited, "слишком много запросов, попробуйте позже")
)
