// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package models

import (
	"time"
)

// DeviceCalendar caches the per-day averages of a device.
//
// Each entry of Recs is a Record whose Date is the UTC start of the day and
// whose stat fields hold that day's averages. Days without records are absent.
type DeviceCalendar struct {
	DeviceID   string    `json:"deviceId"`
	CreatedAt  time.Time `json:"createdAt"`
	Recs       []Record  `json:"recs"`
	InProgress bool      `json:"inProgress"`
}

// Stale reports whether c is a placeholder left behind by a computation
// that started before cutoff.
func (c *DeviceCalendar) Stale(cutoff time.Time) bool {
	return c.InProgress && c.CreatedAt.Before(cutoff)
}

// DeviceStats is an aggregate over one stat field of a device.
type DeviceStats struct {
	Field      string  `json:"field"`
	Device     string  `json:"device"`
	Avg        float64 `json:"avg"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	StdDev     float64 `json:"stdDev"`
	SampleSize int64   `json:"sampleSize"`
}
