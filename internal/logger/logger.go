package logger

import (
	"github.com/sirupsen/logrus"
)

// Log — общий логгер приложения. До вызова Init пишет в stderr с уровнем info.
var Log = logrus.New()

// Init инициализирует структурированный логгер под окружение.
// В development — text формат и уровень debug, иначе JSON и info.
func Init(env string) {
	Log = logrus.New()

	if env == "development" {
		Log.SetLevel(logrus.DebugLevel)
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		return
	}

	Log.SetLevel(logrus.InfoLevel)
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// SetLevel меняет уровень логирования, некорректные значения игнорируются.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return
	}
	Log.SetLevel(lvl)
}

// Component возвращает логгер с полем component.
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}
