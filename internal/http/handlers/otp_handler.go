package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/smartque-backend/internal/dto"
	"github.com/ignatzorin/smartque-backend/internal/http/handlers/common"
	"github.com/ignatzorin/smartque-backend/internal/service"
)

// OTPService — операции с одноразовыми кодами, нужные HTTP слою.
type OTPService interface {
	RequestOTP(ctx context.Context, email string) (*service.OTPRequestResult, error)
	VerifyOTP(ctx context.Context, email, code string) error
}

// OTPHandler обслуживает выдачу и проверку кодов подтверждения email.
type OTPHandler struct {
	otp OTPService
}

// NewOTPHandler создаёт хэндлер.
func NewOTPHandler(otp OTPService) *OTPHandler {
	return &OTPHandler{otp: otp}
}

// GenerateOTP обрабатывает POST /api/auth/generate-otp.
func (h *OTPHandler) GenerateOTP(c *gin.Context) {
	var req dto.GenerateOTPRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	result, err := h.otp.RequestOTP(c.Request.Context(), req.Email)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OTPSentResponse{
		Success:   true,
		Message:   "код подтверждения отправлен на email",
		ExpiresIn: result.ExpiresIn,
		OTP:       result.Code,
	})
}

// VerifyOTP обрабатывает POST /api/auth/verify-otp.
func (h *OTPHandler) VerifyOTP(c *gin.Context) {
	var req dto.VerifyOTPRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	if err := h.otp.VerifyOTP(c.Request.Context(), req.Email, req.OTP); err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OTPVerifiedResponse{
		Success:  true,
		Message:  "email подтверждён",
		Verified: true,
	})
}
