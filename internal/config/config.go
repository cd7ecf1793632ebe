// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

// Package config loads Geigerhub configuration.
//
// Sources are layered with Koanf v2, later layers winning:
//
//  1. Built-in defaults (defaultConfig)
//  2. A YAML file: CONFIG_PATH, else the first of DefaultConfigPaths that exists
//  3. Environment variables listed in envMappings
//
// Load validates the merged result before returning it.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Geiger   GeigerConfig   `koanf:"geiger"`
	Database DatabaseConfig `koanf:"database"`
	Calendar CalendarConfig `koanf:"calendar"`
	Mail     MailConfig     `koanf:"mail"`
	Proxy    ProxyConfig    `koanf:"proxy"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server and live session settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// SessionLimit caps concurrent live sessions per user.
	SessionLimit int `koanf:"session_limit"`
}

// GeigerConfig holds ingestion behaviour.
type GeigerConfig struct {
	// LogIP stores the sender address on each record.
	LogIP bool `koanf:"log_ip"`
	// BehindReverseProxy takes the address from X-Forwarded-For instead of the peer.
	BehindReverseProxy bool `koanf:"behind_reverse_proxy"`

	AlertCooldown   time.Duration `koanf:"alert_cooldown"`
	DeferredTimeout time.Duration `koanf:"deferred_timeout"`

	// IngestRateLimit is requests per minute per client IP on logging endpoints. 0 disables.
	IngestRateLimit int `koanf:"ingest_rate_limit"`

	TimelineLimit   int `koanf:"timeline_limit"`
	StatsSampleSize int `koanf:"stats_sample_size"`
}

// DatabaseConfig selects and configures the record store.
type DatabaseConfig struct {
	// Driver is duckdb or postgres.
	Driver       string `koanf:"driver"`
	Path         string `koanf:"path"`
	MaxMemory    string `koanf:"max_memory"`
	Threads      int    `koanf:"threads"`
	PostgresURL  string `koanf:"postgres_url"`
	MaxOpenConns int    `koanf:"max_open_conns"`
}

// CalendarConfig selects the calendar cache backend.
type CalendarConfig struct {
	// Backend is badger or redis.
	Backend       string `koanf:"backend"`
	BadgerPath    string `koanf:"badger_path"`
	InMemory      bool   `koanf:"in_memory"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	KeyPrefix     string `koanf:"key_prefix"`
}

// MailConfig holds SMTP settings for alert emails.
type MailConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Host     string        `koanf:"host"`
	Port     int           `koanf:"port"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	From     string        `koanf:"from"`
	UseTLS   bool          `koanf:"use_tls"`
	Timeout  time.Duration `koanf:"timeout"`
}

// ProxyConfig tunes outbound forwarding to mirror services.
type ProxyConfig struct {
	Timeout       time.Duration `koanf:"timeout"`
	RatePerSecond float64       `koanf:"rate_per_second"`
	Burst         int           `koanf:"burst"`
	UserAgent     string        `koanf:"user_agent"`

	BreakerMaxRequests uint32        `koanf:"breaker_max_requests"`
	BreakerInterval    time.Duration `koanf:"breaker_interval"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
}

// SecurityConfig holds credential and CORS settings.
type SecurityConfig struct {
	JWTSecret   string        `koanf:"jwt_secret"`
	TokenTTL    time.Duration `koanf:"token_ttl"`
	CORSOrigins []string      `koanf:"cors_origins"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Load reads the layered configuration.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
