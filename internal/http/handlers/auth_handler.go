package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/smartque-backend/internal/dto"
	"github.com/ignatzorin/smartque-backend/internal/http/handlers/common"
	"github.com/ignatzorin/smartque-backend/internal/models"
	"github.com/ignatzorin/smartque-backend/internal/service"
)

// forgotPasswordMessage отдаётся всегда, независимо от того, есть ли такой email.
const forgotPasswordMessage = "если аккаунт с таким email существует, мы отправили ссылку для сброса пароля"

// AuthService — операции с аккаунтами, нужные HTTP слою.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, in service.LoginInput) (*service.AuthResult, error)
	Me(ctx context.Context, userID uuid.UUID) (*models.User, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// AuthHandler предоставляет HTTP слой для регистрации и логина.
type AuthHandler struct {
	auth AuthService
}

// NewAuthHandler создаёт хэндлер.
func NewAuthHandler(auth AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Register обрабатывает POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	result, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.AuthResponse{
		Success: true,
		Message: "регистрация завершена",
		Token:   result.Token,
		User:    result.User,
	})
}

// Login обрабатывает POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AuthResponse{
		Success: true,
		Token:   result.Token,
		User:    result.User,
	})
}

// Me возвращает профиль текущего пользователя.
func (h *AuthHandler) Me(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	user, err := h.auth.Me(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.UserResponse{Success: true, User: user})
}

// ForgotPassword обрабатывает POST /api/auth/forgot-password.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	if err := h.auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Success: true, Message: forgotPasswordMessage})
}

// ResetPassword обрабатывает POST /api/auth/reset-password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	if err := h.auth.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Success: true, Message: "пароль обновлён"})
}
