package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New builds the process-wide slog.Logger. Level is one of debug, info,
// warn, error; anything else falls back to info. Output is JSON on stdout so
// log shippers can ingest it without extra parsing.
func New(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler)
}
