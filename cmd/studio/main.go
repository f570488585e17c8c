package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/application"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/config"
	httptransport "github.com/seelobuilds-bit/pilates-v4-sub004/internal/http"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/logging"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/metrics"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/notify"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/persistence/sqlite"
)

const (
	shutdownTimeout = 10 * time.Second
	webhookTimeout  = 15 * time.Second
)

func main() {
	bootstrap := logging.New(os.Stdout, slog.LevelInfo)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		bootstrap.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("studio service stopped with error", "error", err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	studio, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer studio.Close()

	scheduler, err := studio.startScheduler(ctx)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           studio.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("studio API listening", "addr", server.Addr, "automation_schedule", cfg.AutomationSchedule)
	serveErr := server.ListenAndServe()

	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-time.After(shutdownTimeout):
			logger.Warn("automation run still in progress at shutdown")
		}
	}

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", serveErr)
	}
	return nil
}

// app holds the wired process components.
type app struct {
	storage     *sqlite.Storage
	schedules   *application.ScheduleService
	automations *application.AutomationService
	collector   *metrics.Collector
	handler     http.Handler
	cfg         config.Config
	logger      *slog.Logger
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	storage, err := sqlite.Open(ctx, sqlite.Config{DSN: cfg.SQLiteDSN}, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	cronAuth, err := newCronAuthenticator(cfg)
	if err != nil {
		_ = storage.Close()
		return nil, err
	}

	collector := metrics.NewCollector("studio")

	schedules := application.NewScheduleServiceWithLogger(storage.Schedules, nil, time.Now, logger)
	schedules.SetDefaultLocation(cfg.DefaultLocation)
	schedules.SetRecorder(collector)

	automations := application.NewAutomationService(application.AutomationDependencies{
		Automations: storage.Automations,
		Messages:    storage.Messages,
		Source:      storage.Bookings,
		Sender:      newSender(cfg, logger),
		Policy:      cfg.DedupePolicy,
		Now:         time.Now,
		Logger:      logger,
	})
	automations.SetDefaultLocation(cfg.DefaultLocation)
	automations.SetRecorder(collector)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Schedules:   httptransport.NewScheduleHandler(schedules, logger),
		Automations: httptransport.NewAutomationHandler(automations, logger),
		Health:      httptransport.NewHealthHandler(storage, logger),
		Metrics:     collector.Handler(),
		CronAuth:    cronAuth,
		Logger:      logger,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			collector.InstrumentHandler,
		},
	})

	return &app{
		storage:     storage,
		schedules:   schedules,
		automations: automations,
		collector:   collector,
		handler:     router,
		cfg:         cfg,
		logger:      logger,
	}, nil
}

func (a *app) Close() {
	if err := a.storage.Close(); err != nil {
		a.logger.Error("failed to close storage", "error", err)
	}
}

// startScheduler registers the in-process automation trigger. It returns nil
// when no schedule is configured.
func (a *app) startScheduler(ctx context.Context) (*cron.Cron, error) {
	if a.cfg.AutomationSchedule == "" {
		return nil, nil
	}
	cronLog := cronLogger{logger: a.logger.With("component", "cron")}
	scheduler := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := scheduler.AddFunc(a.cfg.AutomationSchedule, func() { a.runAutomations(ctx) }); err != nil {
		return nil, fmt.Errorf("register automation schedule: %w", err)
	}
	scheduler.Start()
	return scheduler, nil
}

func (a *app) runAutomations(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ctx = logging.ContextWithLogger(ctx, a.logger.With("trigger", "cron"))
	summary, err := a.automations.Run(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, "scheduled automation run failed", "error", err, "automations", summary.Automations)
		return
	}
	a.logger.InfoContext(ctx, "scheduled automation run finished",
		"automations", summary.Automations,
		"sent", summary.TotalSent,
		"duplicates", summary.TotalDuplicates,
		"failed", summary.TotalFailed,
	)
}

func newCronAuthenticator(cfg config.Config) (*application.CronAuthenticator, error) {
	if cfg.CronSecretHash != "" {
		auth, err := application.NewCronAuthenticator(cfg.CronSecretHash)
		if err != nil {
			return nil, fmt.Errorf("cron secret hash: %w", err)
		}
		return auth, nil
	}
	auth, err := application.NewCronAuthenticatorFromSecret(cfg.CronSecret, application.DefaultArgon2idParams)
	if err != nil {
		return nil, fmt.Errorf("cron secret: %w", err)
	}
	return auth, nil
}

// newSender picks the delivery transport. Both channels share it; the
// webhook receiver tells them apart by the channel field.
func newSender(cfg config.Config, logger *slog.Logger) notify.Sender {
	var transport notify.Sender
	if cfg.WebhookURL != "" {
		transport = notify.NewWebhookSender(cfg.WebhookURL, &http.Client{Timeout: webhookTimeout})
	} else {
		transport = notify.NewLogSender(logger)
	}
	return notify.NewRateLimited(notify.Router{Email: transport, SMS: transport}, cfg.SendRate)
}

// cronLogger adapts slog to the robfig/cron logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
