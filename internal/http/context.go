package http

import (
	"context"
	"log/slog"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/logging"
)

type contextKey string

const studioIDContextKey contextKey = "studio_id"

// ContextWithStudioID returns a derived context carrying the calling studio.
func ContextWithStudioID(ctx context.Context, studioID string) context.Context {
	return context.WithValue(ctx, studioIDContextKey, studioID)
}

// StudioIDFromContext extracts the calling studio if one was attached.
func StudioIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(studioIDContextKey).(string)
	return id, ok && id != ""
}

// ContextWithLogger stores the request scoped logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext returns the request scoped logger, or nil.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
