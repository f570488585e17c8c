package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and structured errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}

	var (
		vErr  *ValidationError
		oErr  *OwnershipError
		cErr  *ConflictError
		rcErr *RecurringConflictError
		bErr  *BookingSafetyError
	)
	switch {
	case errors.As(err, &vErr):
		return "validation"
	case errors.As(err, &oErr):
		return "tenant_ownership"
	case errors.As(err, &cErr), errors.As(err, &rcErr):
		return "conflict"
	case errors.As(err, &bErr):
		return "booking_safety"
	}

	return "unexpected"
}
