package logger

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger so every package shares one handler setup.
type Logger struct {
	*slog.Logger
}

func New(level, format string) *Logger {
	return NewWithWriter(os.Stdout, level, format)
}

func NewWithWriter(w io.Writer, level, format string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// Discard drops everything; handy in tests.
func Discard() *Logger {
	return NewWithWriter(io.Discard, "error", "text")
}

// ForUser returns a child logger tagged with the user ID.
func (l *Logger) ForUser(userID string) *Logger {
	return &Logger{Logger: l.With("user", userID)}
}

func parseLevel(level string) slog.Level {
	switch level {
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
