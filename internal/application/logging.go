package application

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

// serviceLogger resolves the request logger and scopes it to a service
// operation so store and transport failures log with a uniform shape.
func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	pairs := append([]any{"service", serviceName, "operation", operation}, attrs...)
	return logging.Or(ctx, base).With(pairs...)
}
