// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/geigerhub/config.yaml",
	"/etc/geigerhub/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			SessionLimit:    2,
		},
		Geiger: GeigerConfig{
			LogIP:              false,
			BehindReverseProxy: false,
			AlertCooldown:      24 * time.Hour,
			DeferredTimeout:    30 * time.Second,
			IngestRateLimit:    120,
			TimelineLimit:      1000,
			StatsSampleSize:    500,
		},
		Database: DatabaseConfig{
			Driver:       "duckdb",
			Path:         "/data/geigerhub.duckdb",
			MaxMemory:    "1GB",
			Threads:      0,
			MaxOpenConns: 10,
		},
		Calendar: CalendarConfig{
			Backend:    "badger",
			BadgerPath: "/data/calendar",
			RedisAddr:  "127.0.0.1:6379",
			KeyPrefix:  "calendar:",
		},
		Mail: MailConfig{
			Enabled: false,
			Port:    587,
			UseTLS:  true,
			Timeout: 30 * time.Second,
		},
		Proxy: ProxyConfig{
			Timeout:            15 * time.Second,
			RatePerSecond:      5,
			Burst:              10,
			UserAgent:          "Geigerhub",
			BreakerMaxRequests: 3,
			BreakerInterval:    time.Minute,
			BreakerTimeout:     2 * time.Minute,
		},
		Security: SecurityConfig{
			TokenTTL:    24 * time.Hour,
			CORSOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf merges defaults, the config file and the environment, then validates.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths accept comma separated strings from the environment.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok || raw == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to config keys.
var envMappings = map[string]string{
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_timeout":          "server.timeout",
	"shutdown_timeout":      "server.shutdown_timeout",
	"session_limit":         "server.session_limit",
	"log_ip":                "geiger.log_ip",
	"behind_reverse_proxy":  "geiger.behind_reverse_proxy",
	"alert_cooldown":        "geiger.alert_cooldown",
	"deferred_timeout":      "geiger.deferred_timeout",
	"ingest_rate_limit":     "geiger.ingest_rate_limit",
	"timeline_limit":        "geiger.timeline_limit",
	"stats_sample_size":     "geiger.stats_sample_size",
	"database_driver":       "database.driver",
	"duckdb_path":           "database.path",
	"duckdb_max_memory":     "database.max_memory",
	"duckdb_threads":        "database.threads",
	"postgres_url":          "database.postgres_url",
	"database_max_conns":    "database.max_open_conns",
	"calendar_backend":      "calendar.backend",
	"badger_path":           "calendar.badger_path",
	"calendar_in_memory":    "calendar.in_memory",
	"redis_addr":            "calendar.redis_addr",
	"redis_password":        "calendar.redis_password",
	"redis_db":              "calendar.redis_db",
	"smtp_enabled":          "mail.enabled",
	"smtp_host":             "mail.host",
	"smtp_port":             "mail.port",
	"smtp_username":         "mail.username",
	"smtp_password":         "mail.password",
	"smtp_from":             "mail.from",
	"smtp_use_tls":          "mail.use_tls",
	"smtp_timeout":          "mail.timeout",
	"proxy_timeout":         "proxy.timeout",
	"proxy_rate_per_second": "proxy.rate_per_second",
	"proxy_burst":           "proxy.burst",
	"proxy_user_agent":      "proxy.user_agent",
	"jwt_secret":            "security.jwt_secret",
	"token_ttl":             "security.token_ttl",
	"cors_origins":          "security.cors_origins",
	"log_level":             "logging.level",
	"log_format":            "logging.format",
	"log_caller":            "logging.caller",
}

// envTransformFunc returns "" for variables Geigerhub does not read, which
// makes koanf skip them.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
