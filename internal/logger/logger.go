package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	defaultLogger *slog.Logger
	once          sync.Once
)

// Init initializes the default logger with a JSON handler writing to stdout.
// The level is taken from TRUELENS_LOG_LEVEL (debug, info, warn, error) and
// defaults to info. Init is safe to call more than once.
func Init() {
	once.Do(func() {
		defaultLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: levelFromEnv(),
		}))
		slog.SetDefault(defaultLogger)
	})
}

// Get returns the initialized default logger, initializing it if needed.
func Get() *slog.Logger {
	Init()
	return defaultLogger
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("TRUELENS_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
