package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the resort service.
type Config struct {
	HTTPPort               int
	SQLiteDSN              string
	Timezone               string
	SessionSecret          string
	SessionTTL             time.Duration
	MaterializeCron        string
	MaterializeWindowDays  int
	DefaultSessionCapacity int
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to sensible defaults; required values are
// validated and reported together so a misconfigured deployment fails with
// one actionable message.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:               8080,
		SQLiteDSN:              "file:resort.db?_foreign_keys=on",
		Timezone:               "Asia/Jerusalem",
		SessionTTL:             24 * time.Hour,
		MaterializeCron:        "0 4 * * *",
		MaterializeWindowDays:  30,
		DefaultSessionCapacity: 12,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("RESORT_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "RESORT_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("RESORT_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if tz := strings.TrimSpace(os.Getenv("RESORT_TIMEZONE")); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			invalid = append(invalid, "RESORT_TIMEZONE")
		} else {
			cfg.Timezone = tz
		}
	}

	if secret := strings.TrimSpace(os.Getenv("RESORT_SESSION_SECRET")); secret == "" {
		missing = append(missing, "RESORT_SESSION_SECRET")
	} else {
		cfg.SessionSecret = secret
	}

	if ttlValue := strings.TrimSpace(os.Getenv("RESORT_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "RESORT_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if cron := strings.TrimSpace(os.Getenv("RESORT_MATERIALIZE_CRON")); cron != "" {
		cfg.MaterializeCron = cron
	}

	if daysValue := strings.TrimSpace(os.Getenv("RESORT_MATERIALIZE_WINDOW_DAYS")); daysValue != "" {
		days, err := strconv.Atoi(daysValue)
		if err != nil || days <= 0 {
			invalid = append(invalid, "RESORT_MATERIALIZE_WINDOW_DAYS")
		} else {
			cfg.MaterializeWindowDays = days
		}
	}

	if capacityValue := strings.TrimSpace(os.Getenv("RESORT_DEFAULT_SESSION_CAPACITY")); capacityValue != "" {
		capacity, err := strconv.Atoi(capacityValue)
		if err != nil || capacity <= 0 {
			invalid = append(invalid, "RESORT_DEFAULT_SESSION_CAPACITY")
		} else {
			cfg.DefaultSessionCapacity = capacity
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
