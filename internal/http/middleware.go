package http

import (
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

const (
	// HeaderStudioID carries the tenant resolved by the upstream auth layer.
	HeaderStudioID = "X-Studio-ID"
	// HeaderCronSecret carries the shared secret of the automation trigger.
	HeaderCronSecret = "X-Cron-Secret"
)

// CronAuthenticator verifies the automation trigger's shared secret.
type CronAuthenticator interface {
	Authenticate(candidate string) error
}

// RequireStudio rejects requests without a studio header and stores the
// studio in the request context.
func RequireStudio(logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			studioID := strings.TrimSpace(r.Header.Get(HeaderStudioID))
			if studioID == "" {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, "STUDIO_REQUIRED", errMissingStudio)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithStudioID(r.Context(), studioID)))
		})
	}
}

// RequireCronSecret guards internal endpoints with the shared cron secret.
// A nil authenticator denies every request.
func RequireCronSecret(auth CronAuthenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				responder.writeError(r.Context(), w, http.StatusServiceUnavailable, "CRON_DISABLED", errCronNotConfigured)
				return
			}
			secret := r.Header.Get(HeaderCronSecret)
			if secret == "" {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, "UNAUTHORIZED", errMissingCronSecret)
				return
			}
			if err := auth.Authenticate(secret); err != nil {
				responder.handleServiceError(r.Context(), w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger attaches a per-request logger carrying a monotonically
// increasing request_id and logs start and completion.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(rec, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", rec.status, "duration", time.Since(start))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
