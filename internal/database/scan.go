// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package database

import (
	"database/sql"

	"github.com/tomtom215/geigerhub/internal/models"
)

// nullableFloat binds an optional value as SQL NULL when absent.
func nullableFloat(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return models.Float(n.Float64)
}

// locationArgs splits a location into lon, lat and alt bind values.
func locationArgs(loc models.Location) (lon, lat, alt interface{}) {
	if !loc.Valid() {
		return nil, nil, nil
	}
	lon, lat = loc.Lon(), loc.Lat()
	if a, ok := loc.Alt(); ok {
		alt = a
	}
	return lon, lat, alt
}

func scanLocation(lon, lat, alt sql.NullFloat64) models.Location {
	if !lon.Valid || !lat.Valid {
		return nil
	}
	return models.NewLocation(lon.Float64, lat.Float64, floatPtr(alt))
}
