// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package api

import "github.com/tomtom215/geigerhub/internal/models"

// CreateDeviceRequest is the body of POST /api/v1/device.
type CreateDeviceRequest struct {
	Name     string          `json:"name" validate:"required,max=64"`
	Location models.Location `json:"location,omitempty" validate:"omitempty,min=2,max=3"`
}

// UpdateDeviceRequest is the body of PUT /api/v1/device/{id}. Absent
// fields are left unchanged.
//
// ProxiesSettings replaces the whole forwarder map when present; an empty
// object removes every forwarder.
type UpdateDeviceRequest struct {
	Name             *string                         `json:"name,omitempty" validate:"omitempty,min=1,max=64"`
	Location         models.Location                 `json:"location,omitempty" validate:"omitempty,min=2,max=3"`
	Disabled         *bool                           `json:"disabled,omitempty"`
	StdDevAlertLimit *float64                        `json:"stdDevAlertLimit,omitempty" validate:"omitempty,gte=0"`
	DisableAlerts    bool                            `json:"disableAlerts,omitempty"`
	ProxiesSettings  map[string]models.ProxySettings `json:"proxiesSettings,omitempty"`
}

// StatsRequest holds the path parameters of the stats endpoint.
type StatsRequest struct {
	Field string `validate:"statfield"`
}
