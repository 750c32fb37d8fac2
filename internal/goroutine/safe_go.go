package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/ignatzorin/smartque-backend/internal/logger"
)

// Logger интерфейс для логирования ошибок
type Logger interface {
	Errorf(format string, args ...interface{})
}

// RecoveryHandler обрабатывает panic в горутинах
type RecoveryHandler struct {
	logger Logger
}

// NewRecoveryHandler создает новый обработчик
func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// SafeGo запускает горутину с обработкой panic
func (rh *RecoveryHandler) SafeGo(fn func()) {
	go func() {
		defer rh.handlePanic("")
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer rh.handlePanic(" (with context)")
		fn(ctx)
	}()
}

func (rh *RecoveryHandler) handlePanic(suffix string) {
	if r := recover(); r != nil {
		rh.logger.Errorf("panic in goroutine%s: %v\nstack trace:\n%s", suffix, r, debug.Stack())
	}
}

// appLogger пишет в logger.Log на момент вызова, а не на момент инициализации пакета.
type appLogger struct{}

func (appLogger) Errorf(format string, args ...interface{}) {
	logger.Log.WithField("component", "goroutine").Errorf(format, args...)
}

// DefaultRecoveryHandler - глобальный обработчик, пишущий в логгер приложения
var DefaultRecoveryHandler = NewRecoveryHandler(appLogger{})

// SafeGo - упрощенная функция для запуска безопасной горутины
func SafeGo(fn func()) {
	DefaultRecoveryHandler.SafeGo(fn)
}

// SafeGoWithContext - упрощенная функция для запуска безопасной горутины с контекстом
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	DefaultRecoveryHandler.SafeGoWithContext(ctx, fn)
}
