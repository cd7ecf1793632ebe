// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package config

import (
	"fmt"
	"strings"
)

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateCalendar(); err != nil {
		return err
	}
	if err := c.validateMail(); err != nil {
		return err
	}
	if err := c.validateProxy(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.SessionLimit < 1 {
		return fmt.Errorf("SESSION_LIMIT must be at least 1")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "duckdb":
		if c.Database.Path == "" {
			return fmt.Errorf("DUCKDB_PATH is required when DATABASE_DRIVER=duckdb")
		}
	case "postgres":
		if c.Database.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required when DATABASE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("DATABASE_DRIVER must be duckdb or postgres, got %q", c.Database.Driver)
	}
	return nil
}

func (c *Config) validateCalendar() error {
	switch c.Calendar.Backend {
	case "badger":
		if c.Calendar.BadgerPath == "" && !c.Calendar.InMemory {
			return fmt.Errorf("BADGER_PATH is required unless CALENDAR_IN_MEMORY=true")
		}
	case "redis":
		if c.Calendar.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when CALENDAR_BACKEND=redis")
		}
	default:
		return fmt.Errorf("CALENDAR_BACKEND must be badger or redis, got %q", c.Calendar.Backend)
	}
	return nil
}

func (c *Config) validateMail() error {
	if !c.Mail.Enabled {
		return nil
	}
	if c.Mail.Host == "" {
		return fmt.Errorf("SMTP_HOST is required when SMTP_ENABLED=true")
	}
	if !strings.Contains(c.Mail.From, "@") {
		return fmt.Errorf("SMTP_FROM must be an email address")
	}
	return nil
}

func (c *Config) validateProxy() error {
	if c.Proxy.Timeout <= 0 {
		return fmt.Errorf("PROXY_TIMEOUT must be positive")
	}
	if c.Proxy.RatePerSecond < 0 {
		return fmt.Errorf("PROXY_RATE_PER_SECOND must not be negative")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "disabled", "off":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
}
