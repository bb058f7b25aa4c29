// Package log настраивает структурированное логирование на slog.
package log

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// Init задаёт глобальный логгер. Уровни: debug, info, warn, error.
// Повторные вызовы игнорируются.
func Init(level string) {
	once.Do(func() {
		opts := &slog.HandlerOptions{Level: ParseLevel(level)}

		// JSON в проде, текст при разработке
		if os.Getenv("GO_ENV") == "production" {
			logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
		} else {
			logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
		}

		slog.SetDefault(logger)
	})
}

// ParseLevel переводит строку уровня в slog.Level, по умолчанию info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// L возвращает глобальный логгер.
func L() *slog.Logger {
	Init("info")
	return logger
}

// Debug пишет на уровне debug.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info пишет на уровне info.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn пишет на уровне warn.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error пишет на уровне error.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With возвращает логгер с атрибутами.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
