// Package logging threads request-scoped slog loggers through contexts so
// handlers and services log with the attributes the middleware attached.
package logging

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// ContextWithLogger attaches logger to the context. A nil logger leaves the
// context unchanged.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger attached to the context, or nil.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(contextKey{}).(*slog.Logger)
	return logger
}

// Or resolves the logger for an operation: the context logger when present,
// otherwise fallback, otherwise slog.Default.
func Or(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger := FromContext(ctx); logger != nil {
		return logger
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}
