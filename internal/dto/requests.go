package dto

import "time"

// GenerateOTPRequest — тело POST /api/auth/generate-otp.
type GenerateOTPRequest struct {
	Email string `json:"email" binding:"required"`
}

// VerifyOTPRequest — тело POST /api/auth/verify-otp.
type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
}

// RegisterRequest — тело POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

// LoginRequest — тело POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ForgotPasswordRequest — тело POST /api/auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

// ResetPasswordRequest — тело POST /api/auth/reset-password.
type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// BookAppointmentRequest — тело POST /api/appointments/book.
// UserID необязателен: по умолчанию запись создаётся на текущего пользователя.
type BookAppointmentRequest struct {
	UserID          string    `json:"userId"`
	DoctorName      string    `json:"doctorName" binding:"required,notblank"`
	DepartmentName  string    `json:"departmentName" binding:"required,notblank"`
	DateTime        time.Time `json:"dateTime" binding:"required"`
	QueueNumber     string    `json:"queueNumber" binding:"required,notblank"`
	ConsultationFee float64   `json:"consultationFee" binding:"gte=0"`
}

// RescheduleRequest — тело POST /api/appointments/reschedule/:appointmentId.
type RescheduleRequest struct {
	DateTime time.Time `json:"dateTime" binding:"required"`
}
