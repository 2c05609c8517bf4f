package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5/middleware"
)

// NewLogger returns a JSON slog logger tagged with the service name.
func NewLogger(service string) *slog.Logger {
	return NewLoggerTo(os.Stdout, service, slog.LevelInfo)
}

// NewLoggerTo is NewLogger with an explicit sink and level.
func NewLoggerTo(w io.Writer, service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{AddSource: true, Level: level})
	return slog.New(handler).With(slog.String("service", service))
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps LOG_LEVEL values onto slog levels, defaulting to info.
func ParseLevel(value string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// FromRequest attaches the chi request identifier found in ctx, if any.
func FromRequest(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if requestID := middleware.GetReqID(ctx); requestID != "" {
		return logger.With(slog.String("requestId", requestID))
	}
	return logger
}
