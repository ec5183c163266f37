package logging

import (
	"log/slog"
	"os"
)

// Init installs the process-wide slog handler. The level comes from LOG_LEVEL
// and falls back to def when the variable is unset or unknown.
func Init(def slog.Level) {
	level := ParseLevel(os.Getenv("LOG_LEVEL"), def)

	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}),
	)
	slog.SetDefault(logger)
}

// ParseLevel maps the LOG_LEVEL vocabulary onto slog levels.
func ParseLevel(s string, def slog.Level) slog.Level {
	switch s {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	}
	return def
}
