// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package models

// Location is a geographic position stored as [lon, lat] or [lon, lat, alt].
// A nil Location means no position.
type Location []float64

// NewLocation builds a Location from longitude and latitude with an optional altitude.
func NewLocation(lon, lat float64, alt *float64) Location {
	if alt != nil {
		return Location{lon, lat, *alt}
	}
	return Location{lon, lat}
}

// Valid reports whether l has two or three components.
func (l Location) Valid() bool {
	return len(l) == 2 || len(l) == 3
}

// Lon returns the longitude. Call only on a valid Location.
func (l Location) Lon() float64 { return l[0] }

// Lat returns the latitude. Call only on a valid Location.
func (l Location) Lat() float64 { return l[1] }

// Alt returns the altitude if present.
func (l Location) Alt() (float64, bool) {
	if len(l) < 3 {
		return 0, false
	}
	return l[2], true
}
