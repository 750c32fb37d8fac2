package dto

import (
	"github.com/ignatzorin/smartque-backend/internal/models"
)

// ErrorResponse — единый формат ошибки API.
type ErrorResponse struct {
	Success           bool   `json:"success"`
	Error             string `json:"error"`
	Code              string `json:"code,omitempty"`
	AttemptsRemaining *int   `json:"attemptsRemaining,omitempty"`
}

// MessageResponse — успешный ответ без данных.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// OTPSentResponse — ответ на запрос кода. OTP заполняется только в development.
type OTPSentResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ExpiresIn int    `json:"expiresIn"`
	OTP       string `json:"otp,omitempty"`
}

// OTPVerifiedResponse — ответ на успешную проверку кода.
type OTPVerifiedResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Verified bool   `json:"verified"`
}

// AuthResponse — ответ регистрации и входа.
type AuthResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Token   string       `json:"token"`
	User    *models.User `json:"user"`
}

// UserResponse — ответ GET /api/auth/me.
type UserResponse struct {
	Success bool         `json:"success"`
	User    *models.User `json:"user"`
}

// QueueNumberResponse — ответ GET /api/appointments/next-queue.
type QueueNumberResponse struct {
	Success     bool   `json:"success"`
	QueueNumber string `json:"queueNumber"`
}

// AppointmentResponse — ответ с одной записью.
type AppointmentResponse struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message,omitempty"`
	Appointment *models.Appointment `json:"appointment"`
}

// AppointmentsResponse — ответ со списком записей.
type AppointmentsResponse struct {
	Success      bool                 `json:"success"`
	Appointments []models.Appointment `json:"appointments"`
}
