// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/geigerhub/internal/config"
	"github.com/tomtom215/geigerhub/internal/models"
)

// Backends selectable with calendar.backend.
const (
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// ErrNotFound is returned by Cache.Get when a device has no calendar entry.
var ErrNotFound = errors.New("calendar not found")

// Cache stores one calendar per device.
type Cache interface {
	Get(ctx context.Context, deviceID string) (*models.DeviceCalendar, error)
	// CreatePending stores an in-progress placeholder unless an entry
	// already exists. A placeholder created before staleBefore, or an
	// undecodable entry, counts as absent and is replaced. It reports
	// whether this call wrote the placeholder.
	CreatePending(ctx context.Context, deviceID string, now, staleBefore time.Time) (bool, error)
	Put(ctx context.Context, cal *models.DeviceCalendar) error
	Delete(ctx context.Context, deviceID string) error
	Close() error
}

// OpenCache opens the backend named in cfg.
func OpenCache(ctx context.Context, cfg *config.CalendarConfig) (Cache, error) {
	switch cfg.Backend {
	case BackendBadger:
		return OpenBadgerCache(cfg)
	case BackendRedis:
		return OpenRedisCache(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown calendar backend %q", cfg.Backend)
	}
}

func pendingEntry(deviceID string, now time.Time) ([]byte, error) {
	return json.Marshal(&models.DeviceCalendar{
		DeviceID:   deviceID,
		CreatedAt:  now.UTC(),
		Recs:       []models.Record{},
		InProgress: true,
	})
}

// replaceable reports whether an existing entry may be overwritten by a
// new placeholder.
func replaceable(b []byte, staleBefore time.Time) bool {
	cal, err := decodeEntry(b)
	if err != nil {
		return true
	}
	return cal.Stale(staleBefore)
}

func decodeEntry(b []byte) (*models.DeviceCalendar, error) {
	var cal models.DeviceCalendar
	if err := json.Unmarshal(b, &cal); err != nil {
		return nil, fmt.Errorf("decode calendar: %w", err)
	}
	return &cal, nil
}
