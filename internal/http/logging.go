package http

import (
	"context"
	"log/slog"

	"github.com/example/catering-scheduler/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// handlerLogger resolves the request logger and scopes it to a handler
// operation for consistent attribute naming across endpoints.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	pairs := append([]any{"handler", handlerName, "operation", operation}, attrs...)
	return logging.Or(ctx, fallback).With(pairs...)
}
