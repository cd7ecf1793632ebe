// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/geigerhub/internal/codec"
	"github.com/tomtom215/geigerhub/internal/config"
	"github.com/tomtom215/geigerhub/internal/logging"
)

// ChiMiddlewareConfig holds configuration for Chi middleware factories.
type ChiMiddlewareConfig struct {
	// CORS configuration
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSExposedHeaders   []string
	CORSAllowCredentials bool
	CORSMaxAge           int // seconds

	// IngestRateLimit is requests per IngestRateWindow per client on
	// logging endpoints. Zero disables the limit.
	IngestRateLimit  int
	IngestRateWindow time.Duration

	// BehindReverseProxy keys rate limits on the forwarded client address.
	BehindReverseProxy bool
}

// DefaultChiMiddlewareConfig returns a secure default configuration.
// CORS origins default to empty, requiring explicit configuration.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins:   []string{},
		CORSAllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		CORSAllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		CORSExposedHeaders:   []string{"X-Request-ID", "X-GMC-Extras"},
		CORSAllowCredentials: false,
		CORSMaxAge:           86400,

		IngestRateLimit:  60,
		IngestRateWindow: time.Minute,
	}
}

// ChiMiddlewareConfigFrom derives middleware settings from the application config.
func ChiMiddlewareConfigFrom(cfg *config.Config) *ChiMiddlewareConfig {
	c := DefaultChiMiddlewareConfig()
	c.CORSAllowedOrigins = cfg.Security.CORSOrigins
	c.IngestRateLimit = cfg.Geiger.IngestRateLimit
	c.BehindReverseProxy = cfg.Geiger.BehindReverseProxy
	return c
}

// ChiMiddleware provides Chi-compatible middleware factories.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware creates a new Chi middleware factory with the given configuration.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   config.CORSAllowedOrigins,
		AllowedMethods:   config.CORSAllowedMethods,
		AllowedHeaders:   config.CORSAllowedHeaders,
		ExposedHeaders:   config.CORSExposedHeaders,
		AllowCredentials: config.CORSAllowCredentials,
		MaxAge:           config.CORSMaxAge,
	})

	return &ChiMiddleware{
		config: config,
		cors:   corsHandler,
	}
}

// CORS returns a Chi-compatible CORS middleware using go-chi/cors.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimitIngest limits logging endpoints per client address. Rejections
// are answered in the status convention devices understand.
func (m *ChiMiddleware) RateLimitIngest() func(http.Handler) http.Handler {
	if m.config.IngestRateLimit <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	keyFunc := httprate.KeyByIP
	if m.config.BehindReverseProxy {
		keyFunc = httprate.KeyByRealIP
	}

	return httprate.Limit(
		m.config.IngestRateLimit,
		m.config.IngestRateWindow,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logging.Ctx(r.Context()).Warn().Str("path", sanitizeLogValue(r.URL.Path)).Msg("Ingestion rate limit exceeded")
			gmcError(w, r, http.StatusTooManyRequests, codec.InternalStatus(errRateLimited), nil)
		}),
	)
}
