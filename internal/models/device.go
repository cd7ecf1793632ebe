// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package models

import (
	"time"
)

// MaxGmcID is the largest identity code accepted for a device.
const MaxGmcID int64 = 9999999999999999

// ProxySettings is the opaque settings object of one forwarder. Each
// forwarder validates its own shape before it is stored on a device.
type ProxySettings map[string]interface{}

// Device is a field sensor that logs records.
type Device struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	GmcID    int64    `json:"gmcId"`
	Owner    string   `json:"owner,omitempty"`
	Location Location `json:"location,omitempty"`
	Disabled bool     `json:"disabled"`

	// LastEmailAlert is the Unix epoch until the first alert is sent.
	LastEmailAlert time.Time `json:"lastEmailAlert"`

	// StdDevAlertLimit enables alerting when set.
	StdDevAlertLimit *float64 `json:"stdDevAlertLimit,omitempty"`

	// ProxiesSettings maps forwarder ID to its settings.
	ProxiesSettings map[string]ProxySettings `json:"proxiesSettings,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// NewDevice returns a device with the alert timestamp at the epoch.
func NewDevice(id, name string, gmcID int64, owner string) *Device {
	return &Device{
		ID:             id,
		Name:           name,
		GmcID:          gmcID,
		Owner:          owner,
		LastEmailAlert: time.Unix(0, 0).UTC(),
		CreatedAt:      time.Now().UTC(),
	}
}

// AlertingEnabled reports whether the device opted into anomaly alerts.
func (d *Device) AlertingEnabled() bool {
	return d.StdDevAlertLimit != nil
}

// PublicDevice is the view of a device shown to anyone but its owner.
type PublicDevice struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Owner    string   `json:"owner,omitempty"`
	Location Location `json:"location,omitempty"`
	Disabled bool     `json:"disabled"`
}

// Public strips owner-only fields.
func (d *Device) Public() PublicDevice {
	return PublicDevice{
		ID:       d.ID,
		Name:     d.Name,
		Owner:    d.Owner,
		Location: d.Location,
		Disabled: d.Disabled,
	}
}
