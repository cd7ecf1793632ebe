// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/geigerhub/internal/auth"
	"github.com/tomtom215/geigerhub/internal/middleware"
)

// Router wires handlers to routes.
type Router struct {
	handler       *Handler
	auth          *auth.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router.
func NewRouter(handler *Handler, authMiddleware *auth.Middleware, mwConfig *ChiMiddlewareConfig) *Router {
	return &Router{
		handler:       handler,
		auth:          authMiddleware,
		chiMiddleware: NewChiMiddleware(mwConfig),
	}
}

// SetupChi configures all HTTP routes using Chi router.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	if router.chiMiddleware.config.BehindReverseProxy {
		// Only trust forwarding headers when a proxy sets them.
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(router.chiMiddleware.CORS()) // CORS must be global to handle OPTIONS preflight

	// ========================
	// Device Logging Endpoints
	// ========================
	// Paths are fixed by counter firmware and third-party uploaders.
	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitIngest())
		r.Get("/log2", router.handler.LogNamed)
		r.Get("/log2.asp", router.handler.LogNamed)
		r.Get("/log", router.handler.LogCompact)
		r.Get("/log.asp", router.handler.LogCompact)
		r.Get("/radmon.php", router.handler.Radmon)
		r.Post("/measurements.json", router.handler.Safecast)
	})

	r.Get("/health", router.handler.Health)
	r.Get("/health/live", router.handler.HealthLive)
	r.Handle("/metrics", promhttp.Handler())

	// ========================
	// Core API Endpoints
	// ========================
	r.Route("/api/v1", func(r chi.Router) {
		r.With(router.chiMiddleware.RateLimitIngest()).Post("/upload/exp/*", router.handler.URadMonitor)

		r.Group(func(r chi.Router) {
			r.Use(router.auth.Optional)

			r.Get("/proxies", router.handler.Proxies)
			r.Get("/ws", router.handler.UserLive)

			r.Route("/device", func(r chi.Router) {
				r.With(router.auth.Required).Post("/", router.handler.CreateDevice)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", router.handler.GetDevice)
					r.With(router.auth.Required).Put("/", router.handler.UpdateDevice)
					r.With(router.auth.Required).Delete("/", router.handler.DeleteDevice)

					r.Get("/timeline", router.handler.Timeline)
					r.Get("/stats/{field}", router.handler.Stats)
					r.Get("/calendar", router.handler.Calendar)
					r.Get("/export/csv", router.handler.ExportCSV)
					r.Get("/live", router.handler.DeviceLive)
				})
			})
		})
	})

	return r
}
