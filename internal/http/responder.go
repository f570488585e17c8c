package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/application"
)

var (
	errBadRequestBody      = errors.New("request body is not valid JSON for this endpoint")
	errMissingStudio       = errors.New("X-Studio-ID header is required")
	errMissingCronSecret   = errors.New("X-Cron-Secret header is required")
	errCronNotConfigured   = errors.New("automation trigger is not configured")
	errServiceNotAvailable = errors.New("service is not configured")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, code string, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.logFailure(ctx, status, err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Code: code, Message: message})
}

// handleServiceError maps application errors onto status codes and
// structured bodies the UI can render field by field.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, "INTERNAL", errors.New("unknown error"))
		return
	}

	var (
		vErr  *application.ValidationError
		oErr  *application.OwnershipError
		cErr  *application.ConflictError
		rcErr *application.RecurringConflictError
		bErr  *application.BookingSafetyError
	)
	status := http.StatusInternalServerError
	body := errorResponse{Code: "INTERNAL", Message: "internal server error"}

	switch {
	case errors.As(err, &vErr):
		status = http.StatusUnprocessableEntity
		body = errorResponse{Code: "VALIDATION_FAILED", Message: "request validation failed", Errors: vErr.FieldErrors}
	case errors.As(err, &oErr):
		status = http.StatusBadRequest
		body = errorResponse{
			Code:    "TENANT_OWNERSHIP",
			Message: oErr.Field + " does not belong to this studio",
			Errors:  map[string]string{oErr.Field: oErr.ID + " does not belong to this studio"},
		}
	case errors.As(err, &cErr):
		status = http.StatusConflict
		body = errorResponse{Code: "SCHEDULE_CONFLICT", Message: "the requested time conflicts with the schedule", Conflicts: toConflictDTOs(cErr.Conflicts)}
	case errors.As(err, &rcErr):
		status = http.StatusConflict
		body = errorResponse{Code: "RECURRING_CONFLICT", Message: "no occurrence of the series could be scheduled", Skipped: toSkippedDTOs(rcErr.Skipped)}
	case errors.As(err, &bErr):
		status = http.StatusConflict
		body = errorResponse{Code: "SESSIONS_HAVE_BOOKINGS", Message: "sessions with active bookings cannot be deleted", SessionCount: bErr.SessionCount}
	case errors.Is(err, application.ErrUnauthorized):
		status = http.StatusUnauthorized
		body = errorResponse{Code: "UNAUTHORIZED", Message: "authentication required"}
	case errors.Is(err, application.ErrNotFound):
		status = http.StatusNotFound
		body = errorResponse{Code: "NOT_FOUND", Message: "resource not found"}
	}

	r.logFailure(ctx, status, err)
	r.writeJSON(ctx, w, status, body)
}

func (r responder) logFailure(ctx context.Context, status int, err error) {
	logger := r.loggerFor(ctx)
	attrs := []any{"status", status, "error", err, "error_kind", application.ErrorKind(err)}
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", attrs...)
		return
	}
	logger.InfoContext(ctx, "request rejected", attrs...)
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	Code         string            `json:"errorCode,omitempty"`
	Message      string            `json:"message"`
	Errors       map[string]string `json:"errors,omitempty"`
	Conflicts    []conflictDTO     `json:"conflicts,omitempty"`
	Skipped      []skippedDTO      `json:"skipped,omitempty"`
	SessionCount int               `json:"sessionCount,omitempty"`
}
