// Package config loads and validates environment-based configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: field %q: %s", e.Field, e.Message)
}

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	// DBDSN is the PostgreSQL connection string. Empty selects the
	// in-memory store (demo mode, nothing survives a restart).
	DBDSN string

	// OSRMURL is the base URL of the OSRM-compatible route service.
	OSRMURL string

	// RouteProfile is the travel profile used when a request names none.
	RouteProfile string

	Port           int
	RequestTimeout time.Duration
	LogLevel       string
}

// Load reads and validates environment variables.
// Returns a ConfigError for any invalid value.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DBDSN = os.Getenv("DB_DSN")
	// Optional: an empty DSN selects the in-memory store.

	cfg.OSRMURL = os.Getenv("OSRM_URL")
	if cfg.OSRMURL == "" {
		cfg.OSRMURL = "https://router.project-osrm.org"
	}

	cfg.RouteProfile = os.Getenv("ROUTE_PROFILE")
	if cfg.RouteProfile == "" {
		cfg.RouteProfile = "driving"
	}

	cfg.RequestTimeout = parseDurationEnv("REQUEST_TIMEOUT", 15*time.Second)

	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	portStr := os.Getenv("PORT")
	if portStr == "" {
		cfg.Port = 8080
	} else {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, &ConfigError{Field: "PORT", Message: "must be a valid integer"}
		}
		if port < 1 || port > 65535 {
			return nil, &ConfigError{Field: "PORT", Message: "must be between 1 and 65535"}
		}
		cfg.Port = port
	}

	return cfg, nil
}

// Validate re-checks required fields on an already-constructed Config.
func (c *Config) Validate() error {
	var errs []error
	if c.OSRMURL == "" {
		errs = append(errs, &ConfigError{Field: "OSRM_URL", Message: "cannot be empty"})
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, &ConfigError{Field: "PORT", Message: "must be between 1 and 65535"})
	}
	return errors.Join(errs...)
}

// parseDurationEnv reads a duration from an environment variable.
// Falls back to defaultVal if the variable is unset or unparseable.
// Accepts Go duration strings like "15s", "1m".
func parseDurationEnv(key string, defaultVal time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultVal
	}
	return d
}
