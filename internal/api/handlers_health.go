// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package api

import (
	"net/http"
	"time"
)

// HealthStatus is the body of /health.
type HealthStatus struct {
	Status            string   `json:"status"`
	DatabaseDriver    string   `json:"database_driver"`
	DatabaseConnected bool     `json:"database_connected"`
	Proxies           []string `json:"proxies"`
	Uptime            float64  `json:"uptime"`
}

// Health reports database connectivity and uptime.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	dbConnected := h.db != nil && h.db.Ping(r.Context()) == nil

	status := "healthy"
	code := http.StatusOK
	if !dbConnected {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	health := HealthStatus{
		Status:            status,
		DatabaseConnected: dbConnected,
		Proxies:           h.proxies.IDs(),
		Uptime:            time.Since(h.startTime).Seconds(),
	}
	if h.db != nil {
		health.DatabaseDriver = h.db.Driver()
	}
	respondData(w, r, code, health, started)
}

// HealthLive returns 200 whenever the process is serving.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, map[string]string{"status": "alive"}, time.Now())
}

// Proxies lists the forwarder ids a device may configure.
func (h *Handler) Proxies(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, h.proxies.IDs(), time.Now())
}
