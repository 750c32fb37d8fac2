package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/smartque-backend/internal/config"
	"github.com/ignatzorin/smartque-backend/internal/db"
	httpHandlers "github.com/ignatzorin/smartque-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/smartque-backend/internal/http/router"
	"github.com/ignatzorin/smartque-backend/internal/lock"
	"github.com/ignatzorin/smartque-backend/internal/logger"
	"github.com/ignatzorin/smartque-backend/internal/mail"
	"github.com/ignatzorin/smartque-backend/internal/repository"
	"github.com/ignatzorin/smartque-backend/internal/scheduler"
	"github.com/ignatzorin/smartque-backend/internal/service"
	"github.com/ignatzorin/smartque-backend/internal/ws"
)

const (
	shutdownTimeout     = 10 * time.Second
	redisLockTTL        = 10 * time.Second
	housekeepingTimeout = 30 * time.Second
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.Env)
	if cfg.LogLevel != "" {
		logger.SetLevel(cfg.LogLevel)
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.WithError(err).Fatal("main: ошибка подключения к базе")
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		logger.Log.WithError(err).Fatal("main: ошибка миграций")
	}

	// Блокировка очереди: Redis, если задан, иначе в памяти процесса.
	locker, redisClient := newLocker(ctx, cfg)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Log.WithError(err).Warn("main: ошибка закрытия redis")
			}
		}()
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	sender := mail.New(cfg.Email)

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	otpRepo := repository.NewOTPRepository(dbConn)
	resetRepo := repository.NewPasswordResetRepository(dbConn)
	appointmentRepo := repository.NewAppointmentRepository(dbConn)

	// Вебсокеты.
	hub := ws.NewHub()
	go hub.Run(ctx)

	// Сервисы.
	otpService := service.NewOTPService(otpRepo, userRepo, sender, service.OTPConfig{
		TTL:            cfg.OTPTTL,
		MaxAttempts:    cfg.OTPMaxAttempts,
		LockoutEnabled: cfg.OTPLockoutEnabled,
		EchoCode:       cfg.IsDevelopment(),
	})
	authService := service.NewAuthService(userRepo, resetRepo, otpService, tokenManager, sender, service.AuthConfig{
		ResetURLBase: cfg.ResetURLBase,
	})
	appointmentService := service.NewAppointmentService(appointmentRepo, locker, hub, cfg.QueueLocation)

	// Фоновая очистка просроченных кодов и токенов сброса.
	housekeeping, err := scheduler.New(cfg.HousekeepingSchedule, housekeepingTimeout,
		scheduler.Job{Name: "purge_expired_otp", Run: otpService.PurgeExpired},
		scheduler.Job{Name: "purge_expired_resets", Run: authService.PurgeExpiredResets},
	)
	if err != nil {
		logger.Log.WithError(err).Fatal("main: ошибка настройки планировщика")
	}
	housekeeping.Start()

	// HTTP хэндлеры и роутер.
	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		OTP:          httpHandlers.NewOTPHandler(otpService),
		Auth:         httpHandlers.NewAuthHandler(authService),
		Appointments: httpHandlers.NewAppointmentHandler(appointmentService),
		Health:       httpHandlers.NewHealthHandler(dbConn),
		WS:           httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
	}, tokenManager)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Error("main: ошибка остановки http сервера")
		}
		housekeeping.Stop(shutdownCtx)
	}()

	logger.Log.WithField("port", cfg.HTTPPort).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.WithError(err).Fatal("main: сервер завершился с ошибкой")
	}
}

// newLocker выбирает реализацию блокировки очереди.
// Недоступный Redis не мешает запуску: откатываемся на локальную блокировку.
func newLocker(ctx context.Context, cfg *config.Config) (lock.PartitionLocker, *redis.Client) {
	if cfg.RedisAddr == "" {
		return lock.NewLocalLocker(), nil
	}

	client, err := lock.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Log.WithError(err).Warn("main: redis недоступен, используется локальная блокировка очереди")
		return lock.NewLocalLocker(), nil
	}

	logger.Log.WithField("addr", cfg.RedisAddr).Info("main: блокировка очереди через redis")
	return lock.NewRedisLocker(client, redisLockTTL), client
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		logger.Log.WithError(err).Warn("main: ошибка закрытия базы")
	}
}
