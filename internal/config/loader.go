package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/application"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/logging"
)

const (
	DefaultHTTPPort  = 8080
	DefaultSQLiteDSN = "file:studio.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
)

// Config captures environment driven configuration values for the studio service.
type Config struct {
	HTTPPort  int
	SQLiteDSN string

	// Exactly one of CronSecret and CronSecretHash is used; the hash wins when both are set.
	CronSecret     string
	CronSecretHash string

	// AutomationSchedule is a standard five field cron expression. Empty disables the in-process trigger.
	AutomationSchedule string
	DedupePolicy       application.DedupePolicy
	SendRate           float64
	DefaultLocation    *time.Location
	LogLevel           slog.Level
	WebhookURL         string
}

// Load reads an optional .env file in the working directory and then parses
// the process environment.
func Load() (Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return FromEnv(os.Getenv)
}

// LoadDotEnv applies variables from the given files without overriding the
// ones already present in the environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// FromEnv builds a Config from a lookup function. Every missing or invalid
// variable is reported in one error.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		HTTPPort:        DefaultHTTPPort,
		SQLiteDSN:       DefaultSQLiteDSN,
		DedupePolicy:    application.DedupeAny,
		DefaultLocation: time.UTC,
		LogLevel:        slog.LevelInfo,
	}

	value := func(key string) string { return strings.TrimSpace(getenv(key)) }

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := value("STUDIO_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "STUDIO_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := value("STUDIO_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	cfg.CronSecret = value("STUDIO_CRON_SECRET")
	cfg.CronSecretHash = value("STUDIO_CRON_SECRET_HASH")
	if cfg.CronSecret == "" && cfg.CronSecretHash == "" {
		missing = append(missing, "STUDIO_CRON_SECRET")
	}
	if cfg.CronSecretHash != "" && !strings.HasPrefix(cfg.CronSecretHash, "$argon2id$") {
		invalid = append(invalid, "STUDIO_CRON_SECRET_HASH")
	}

	if schedule := value("STUDIO_AUTOMATION_SCHEDULE"); schedule != "" {
		if _, err := cron.ParseStandard(schedule); err != nil {
			invalid = append(invalid, "STUDIO_AUTOMATION_SCHEDULE")
		} else {
			cfg.AutomationSchedule = schedule
		}
	}

	if policy, err := application.ParseDedupePolicy(value("STUDIO_DEDUPE_POLICY")); err != nil {
		invalid = append(invalid, "STUDIO_DEDUPE_POLICY")
	} else {
		cfg.DedupePolicy = policy
	}

	if rateValue := value("STUDIO_SEND_RATE"); rateValue != "" {
		rate, err := strconv.ParseFloat(rateValue, 64)
		if err != nil || rate < 0 {
			invalid = append(invalid, "STUDIO_SEND_RATE")
		} else {
			cfg.SendRate = rate
		}
	}

	if zone := value("STUDIO_TIMEZONE"); zone != "" {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			invalid = append(invalid, "STUDIO_TIMEZONE")
		} else {
			cfg.DefaultLocation = loc
		}
	}

	if level, err := logging.ParseLevel(value("STUDIO_LOG_LEVEL")); err != nil {
		invalid = append(invalid, "STUDIO_LOG_LEVEL")
	} else {
		cfg.LogLevel = level
	}

	cfg.WebhookURL = value("STUDIO_WEBHOOK_URL")
	if cfg.WebhookURL != "" && !strings.HasPrefix(cfg.WebhookURL, "http://") && !strings.HasPrefix(cfg.WebhookURL, "https://") {
		invalid = append(invalid, "STUDIO_WEBHOOK_URL")
	}

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "missing required environment variables: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		problems = append(problems, "invalid environment variables: "+strings.Join(invalid, ", "))
	}
	if len(problems) > 0 {
		return Config{}, errors.New(strings.Join(problems, "; "))
	}

	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
