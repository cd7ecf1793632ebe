// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package proxy

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/tomtom215/geigerhub/internal/models"
)

// SafecastTimeLayout is ISO-8601 with milliseconds and zone.
const SafecastTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// SafecastSettings identify the device and API key on api.safecast.org.
type SafecastSettings struct {
	DeviceID int64  `json:"deviceId" validate:"gmcid"`
	APIKey   string `json:"apiKey" validate:"required"`
}

// SafecastMeasurement is the measurements.json request body.
type SafecastMeasurement struct {
	CapturedAt string  `json:"captured_at"`
	DeviceID   int64   `json:"device_id"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit"`
	Longitude  float64 `json:"longitude"`
	Latitude   float64 `json:"latitude"`
}

// Safecast posts cpm measurements to the Safecast API.
type Safecast struct {
	httpForwarder
	baseURL string
}

func (s *Safecast) ID() string { return SafecastID }

// ValidateSettings also requires the device itself to have a location.
func (s *Safecast) ValidateSettings(dev *models.Device, raw models.ProxySettings) error {
	if _, err := decodeSettings[SafecastSettings](raw, 2); err != nil {
		return err
	}
	if dev == nil || !dev.Location.Valid() {
		return ErrNoDeviceLocation
	}
	return nil
}

func (s *Safecast) Forward(ctx context.Context, rec *models.Record, dev *models.Device, raw models.ProxySettings) error {
	settings, err := decodeSettings[SafecastSettings](raw, 2)
	if err != nil {
		return err
	}
	if rec.CPM == nil {
		return ErrNoCPM
	}
	loc, ok := position(rec, dev)
	if !ok {
		return ErrNoPosition
	}

	body, err := json.Marshal(SafecastMeasurement{
		CapturedAt: rec.Date.Format(SafecastTimeLayout),
		DeviceID:   settings.DeviceID,
		Value:      *rec.CPM,
		Unit:       "cpm",
		Longitude:  loc.Lon(),
		Latitude:   loc.Lat(),
	})
	if err != nil {
		return err
	}

	target := s.baseURL + "/measurements.json?" + url.Values{"api_key": {settings.APIKey}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	status, respBody, err := s.do(req)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("safecast returned %d: %s", status, respBody)
	}
	return nil
}
