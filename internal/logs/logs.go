// Package logs builds the slog loggers injected into every component.
package logs

import (
	"log/slog"
	"os"
	"strings"
)

// FromLevel returns a text logger writing to stderr at the given level.
func FromLevel(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// FromString maps a configuration string ("debug", "info", "warn", "error")
// to a logger. Unknown values fall back to info.
func FromString(level string) *slog.Logger {
	return FromLevel(parseLevel(level))
}

func parseLevel(level string) slog.Level {
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
