// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package models

// User owns devices. Accounts are provisioned outside Geigerhub; this is the
// subset the ingestion path needs.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email,omitempty"`
	GmcID       int64  `json:"gmcId"`
	DeviceLimit int    `json:"deviceLimit"`
	Alertable   bool   `json:"alertEmails"`
}
