package http

import (
	"log/slog"
	"net/http"
	"strings"
)

type RouterConfig struct {
	Schedules   *ScheduleHandler
	Automations *AutomationHandler
	Health      *HealthHandler
	Metrics     http.Handler
	// CronAuth guards the automation trigger. Without it the route answers 503.
	CronAuth   CronAuthenticator
	Logger     *slog.Logger
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Schedules != nil {
		studio := RequireStudio(cfg.Logger)
		mux.Handle("/studio/schedule", studio(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Schedules.List(w, r)
			case http.MethodPost:
				cfg.Schedules.Create(w, r)
			case http.MethodDelete:
				cfg.Schedules.Delete(w, r)
			case http.MethodPatch:
				cfg.Schedules.Reassign(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodPatch)
			}
		})))
		mux.Handle("/studio/schedule/conflicts", studio(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Schedules.Conflicts(w, r)
		})))
	}

	if cfg.Automations != nil {
		mux.Handle("/internal/automations/run", RequireCronSecret(cfg.CronAuth, cfg.Logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Automations.Run(w, r)
		})))
	}

	if cfg.Health != nil {
		mux.Handle("/healthz", cfg.Health)
	}
	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
