// Package logs centralizes logger construction so every binary and test
// configures slog the same way.
package logs

import (
	"log/slog"
	"os"
	"strings"
)

// GetLoggerFromLevel returns a text logger writing to stderr at the given level.
func GetLoggerFromLevel(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// GetLoggerFromString maps a configuration string (debug, info, warn, error)
// to a logger. Unknown values fall back to info.
func GetLoggerFromString(level string) *slog.Logger {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return GetLoggerFromLevel(slog.LevelDebug)
	case "warn", "warning":
		return GetLoggerFromLevel(slog.LevelWarn)
	case "error":
		return GetLoggerFromLevel(slog.LevelError)
	default:
		return GetLoggerFromLevel(slog.LevelInfo)
	}
}
