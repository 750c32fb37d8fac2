package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrCodeValidation:           http.StatusBadRequest,
		ErrCodeConflict:             http.StatusConflict,
		ErrCodeNotFound:             http.StatusNotFound,
		ErrCodeExpired:              http.StatusBadRequest,
		ErrCodeInvalidCode:          http.StatusBadRequest,
		ErrCodeVerificationRequired: http.StatusBadRequest,
		ErrCodeInvalidToken:         http.StatusUnauthorized,
		ErrCodeTooManyAttempts:      http.StatusTooManyRequests,
		ErrCodeDeliveryFailed:       http.StatusBadGateway,
		ErrCodeRateLimited:          http.StatusTooManyRequests,
		ErrCodeInternal:             http.StatusInternalServerError,
	}

	for code, status := range cases {
		assert.Equal(t, status, New(code, "x").HTTPStatus, string(code))
	}
}

func TestInvalidCode_CarriesAttempts(t *testing.T) {
	err := InvalidCode(-1)
	require.NotNil(t, err.AttemptsRemaining)
	assert.Equal(t, -1, *err.AttemptsRemaining)
	assert.Equal(t, ErrCodeInvalidCode, CodeOf(err))
}

func TestErrorsIs_MatchesWrappedSentinel(t *testing.T) {
	err := fmt.Errorf("otp service: %w", ErrOTPExpired)
	assert.True(t, errors.Is(err, ErrOTPExpired))
	assert.False(t, errors.Is(err, ErrOTPNotFound))

	wrapped := Wrap(errors.New("smtp down"), ErrCodeDeliveryFailed, ErrDeliveryFailed.Message)
	assert.True(t, errors.Is(wrapped, ErrDeliveryFailed))
	assert.Contains(t, wrapped.Error(), "smtp down")
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("boom")))
	assert.True(t, IsNotFound(ErrAppointmentNotFound))
	assert.True(t, IsConflict(ErrEmailRegistered))
	assert.True(t, IsValidation(Validation("bad")))
}
