package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/smartque-backend/internal/config"
	"github.com/ignatzorin/smartque-backend/internal/dto"
	"github.com/ignatzorin/smartque-backend/internal/http/handlers"
	"github.com/ignatzorin/smartque-backend/internal/http/middleware"
	"github.com/ignatzorin/smartque-backend/internal/models"
	"github.com/ignatzorin/smartque-backend/internal/pkg/apperror"
	"github.com/ignatzorin/smartque-backend/internal/service"
	"github.com/ignatzorin/smartque-backend/internal/validation"
)

// Handlers собирает все HTTP хэндлеры приложения.
type Handlers struct {
	OTP          *handlers.OTPHandler
	Auth         *handlers.AuthHandler
	Appointments *handlers.AppointmentHandler
	Health       *handlers.HealthHandler
	WS           *handlers.WSHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokenManager *service.TokenManager) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	validation.RegisterBindingValidations()

	r := gin.New()
	r.Use(middleware.RequestLogger())
	r.Use(gin.Recovery())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: "маршрут не найден",
			Code:  string(apperror.ErrCodeNotFound),
		})
	})

	api := r.Group("/api")
	api.GET("/health", h.Health.Health)

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/generate-otp", h.OTP.GenerateOTP)
		authGroup.POST("/verify-otp", h.OTP.VerifyOTP)
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/forgot-password", h.Auth.ForgotPassword)
		authGroup.POST("/reset-password", h.Auth.ResetPassword)
	}

	protectedAuth := api.Group("/auth")
	protectedAuth.Use(middleware.AuthMiddleware(tokenManager))
	{
		protectedAuth.GET("/me", h.Auth.Me)
	}

	appointments := api.Group("/appointments")
	appointments.Use(middleware.AuthMiddleware(tokenManager))
	{
		appointments.GET("/next-queue", h.Appointments.NextQueueNumber)
		appointments.POST("/book", h.Appointments.Book)
		appointments.GET("/user/:userId", middleware.UUIDValidator("userId"), h.Appointments.ListByUser)
		appointments.POST("/cancel/:appointmentId", middleware.UUIDValidator("appointmentId"), h.Appointments.Cancel)
		appointments.POST("/reschedule/:appointmentId", middleware.UUIDValidator("appointmentId"), h.Appointments.Reschedule)
		appointments.POST("/complete/:appointmentId",
			middleware.UUIDValidator("appointmentId"),
			middleware.RequireRole(models.RoleAdmin),
			h.Appointments.Complete,
		)
	}

	// WebSocket: токен передаётся в query, т.к. браузер не умеет ставить заголовки при upgrade
	api.GET("/ws", h.WS.Handle)

	return r
}
