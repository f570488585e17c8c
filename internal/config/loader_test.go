package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/application"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestFromEnv(t *testing.T) {
	t.Parallel()

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		t.Parallel()
		cfg, err := FromEnv(envMap(map[string]string{"STUDIO_CRON_SECRET": "super-secret"}))
		if err != nil {
			t.Fatalf("FromEnv returned error: %v", err)
		}
		if cfg.HTTPPort != DefaultHTTPPort || cfg.Addr() != ":8080" {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != DefaultSQLiteDSN {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.CronSecret != "super-secret" || cfg.DedupePolicy != application.DedupeAny {
			t.Fatalf("unexpected secret or policy: %+v", cfg)
		}
		if cfg.DefaultLocation.String() != "UTC" || cfg.LogLevel != slog.LevelInfo || cfg.AutomationSchedule != "" || cfg.SendRate != 0 {
			t.Fatalf("unexpected defaults: %+v", cfg)
		}
	})

	t.Run("errors when the cron secret is missing", func(t *testing.T) {
		t.Parallel()
		_, err := FromEnv(envMap(nil))
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		if err.Error() != "missing required environment variables: STUDIO_CRON_SECRET" {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("parses every field", func(t *testing.T) {
		t.Parallel()
		cfg, err := FromEnv(envMap(map[string]string{
			"STUDIO_HTTP_PORT":           "9090",
			"STUDIO_SQLITE_DSN":          "file:/tmp/studio.db",
			"STUDIO_CRON_SECRET_HASH":    "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$a2V5",
			"STUDIO_AUTOMATION_SCHEDULE": "*/15 * * * *",
			"STUDIO_DEDUPE_POLICY":       "SENT_ONLY",
			"STUDIO_SEND_RATE":           "2.5",
			"STUDIO_TIMEZONE":            "Europe/Madrid",
			"STUDIO_LOG_LEVEL":           "debug",
			"STUDIO_WEBHOOK_URL":         "https://hooks.example.com/studio",
		}))
		if err != nil {
			t.Fatalf("FromEnv returned error: %v", err)
		}
		if cfg.HTTPPort != 9090 || cfg.SQLiteDSN != "file:/tmp/studio.db" {
			t.Fatalf("unexpected listener config: %+v", cfg)
		}
		if cfg.CronSecret != "" || !strings.HasPrefix(cfg.CronSecretHash, "$argon2id$") {
			t.Fatalf("unexpected cron secret config: %+v", cfg)
		}
		if cfg.AutomationSchedule != "*/15 * * * *" || cfg.DedupePolicy != application.DedupeSentOnly || cfg.SendRate != 2.5 {
			t.Fatalf("unexpected automation config: %+v", cfg)
		}
		if cfg.DefaultLocation.String() != "Europe/Madrid" || cfg.LogLevel != slog.LevelDebug || cfg.WebhookURL != "https://hooks.example.com/studio" {
			t.Fatalf("unexpected ambient config: %+v", cfg)
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		t.Parallel()
		_, err := FromEnv(envMap(map[string]string{
			"STUDIO_HTTP_PORT":           "-1",
			"STUDIO_CRON_SECRET_HASH":    "plain",
			"STUDIO_AUTOMATION_SCHEDULE": "every quarter hour",
			"STUDIO_DEDUPE_POLICY":       "never",
			"STUDIO_SEND_RATE":           "fast",
			"STUDIO_TIMEZONE":            "Mars/Olympus",
			"STUDIO_LOG_LEVEL":           "loud",
			"STUDIO_WEBHOOK_URL":         "ftp://example.com",
		}))
		if err == nil {
			t.Fatalf("expected validation error")
		}
		for _, key := range []string{
			"STUDIO_HTTP_PORT",
			"STUDIO_CRON_SECRET_HASH",
			"STUDIO_AUTOMATION_SCHEDULE",
			"STUDIO_DEDUPE_POLICY",
			"STUDIO_SEND_RATE",
			"STUDIO_TIMEZONE",
			"STUDIO_LOG_LEVEL",
			"STUDIO_WEBHOOK_URL",
		} {
			if !strings.Contains(err.Error(), key) {
				t.Errorf("expected %s in %q", key, err.Error())
			}
		}
		if strings.Contains(err.Error(), "missing required") {
			t.Errorf("hash alone satisfies the secret requirement: %q", err.Error())
		}
	})
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("STUDIO_TEST_DOTENV_PORT=7070\nSTUDIO_TEST_DOTENV_KEEP=from-file\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("STUDIO_TEST_DOTENV_KEEP", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("STUDIO_TEST_DOTENV_PORT") })

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("STUDIO_TEST_DOTENV_PORT"); got != "7070" {
		t.Fatalf("expected value from file, got %q", got)
	}
	if got := os.Getenv("STUDIO_TEST_DOTENV_KEEP"); got != "from-env" {
		t.Fatalf("expected existing environment to win, got %q", got)
	}
}
