// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

// Package proxy mirrors accepted records to third-party radiation maps.
//
// Each device carries a mapping of forwarder ID to settings. The settings
// are validated when the device is updated; at dispatch time every named
// forwarder is invoked concurrently behind its own circuit breaker and
// rate limiter.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/geigerhub/internal/models"
	"github.com/tomtom215/geigerhub/internal/validation"
)

// Forwarder IDs stored in device settings.
const (
	GmcmapID      = "gmcmap"
	RadmonID      = "radmon"
	SafecastID    = "safecast"
	URadMonitorID = "uradmonitor"
)

const maxResponseBody = 64 << 10

var (
	ErrUnknownForwarder = errors.New("unknown forwarder")
	ErrSettingsCount    = errors.New("invalid number of arguments")
	ErrNoPosition       = errors.New("neither record nor device have a position")
	ErrNoCPM            = errors.New("record has no cpm")
	ErrNoDeviceLocation = errors.New("device location is required")
)

// Forwarder sends one record to one external service.
type Forwarder interface {
	ID() string
	ValidateSettings(dev *models.Device, raw models.ProxySettings) error
	Forward(ctx context.Context, rec *models.Record, dev *models.Device, settings models.ProxySettings) error
}

// Doer is the part of *http.Client the forwarders use.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Endpoints are the base URLs of the external services.
type Endpoints struct {
	Gmcmap      string
	Radmon      string
	Safecast    string
	URadMonitor string
}

// DefaultEndpoints returns the public service URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Gmcmap:      "https://www.gmcmap.com",
		Radmon:      "https://radmon.org",
		Safecast:    "https://api.safecast.org",
		URadMonitor: "https://data.uradmonitor.com",
	}
}

// Forwarders builds the static forwarder table.
func Forwarders(client Doer, userAgent string, ep Endpoints) []Forwarder {
	base := httpForwarder{client: client, userAgent: userAgent}
	return []Forwarder{
		&Gmcmap{httpForwarder: base, baseURL: ep.Gmcmap},
		&Radmon{httpForwarder: base, baseURL: ep.Radmon},
		&Safecast{httpForwarder: base, baseURL: ep.Safecast},
		&URadMonitor{httpForwarder: base, baseURL: ep.URadMonitor},
	}
}

// decodeSettings converts a raw settings object into T. The object must
// have exactly fieldCount keys, all known to T.
func decodeSettings[T any](raw models.ProxySettings, fieldCount int) (*T, error) {
	if len(raw) != fieldCount {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrSettingsCount, fieldCount, len(raw))
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}

	var out T
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if verr := validation.ValidateStruct(&out); verr != nil {
		return nil, verr
	}
	return &out, nil
}

// position picks the record location, falling back to the device's.
func position(rec *models.Record, dev *models.Device) (models.Location, bool) {
	if rec.Location.Valid() {
		return rec.Location, true
	}
	if dev != nil && dev.Location.Valid() {
		return dev.Location, true
	}
	return nil, false
}

type httpForwarder struct {
	client    Doer
	userAgent string
}

// do sends req and returns the status and a bounded copy of the body.
func (h httpForwarder) do(req *http.Request) (int, string, error) {
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, string(body), nil
}
