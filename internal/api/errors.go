// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/geigerhub/internal/codec"
	"github.com/tomtom215/geigerhub/internal/fanout"
)

var (
	// ErrDeviceLimit is returned when a user already owns as many devices as allowed.
	ErrDeviceLimit = errors.New("device limit reached")

	// ErrUnitNotCPM rejects submissions measured in anything but counts per minute.
	ErrUnitNotCPM = errors.New("unit must be cpm")

	// ErrMissingValue rejects submissions without a reading.
	ErrMissingValue = errors.New("missing value")

	// ErrBadFunction rejects radmon calls other than submit.
	ErrBadFunction = errors.New("function must be submit")

	errRateLimited = errors.New("rate limit exceeded")
)

// ingestStatus maps an ingestion failure to the HTTP status and the
// status string firmware expects.
func ingestStatus(err error) (int, string) {
	switch {
	case errors.Is(err, codec.ErrSyntax), errors.Is(err, fanout.ErrNoStats):
		return http.StatusBadRequest, codec.StatusSyntax
	case errors.Is(err, codec.ErrInvalidUserID):
		return http.StatusBadRequest, codec.StatusInvalidUser
	case errors.Is(err, codec.ErrInvalidDeviceID):
		return http.StatusBadRequest, codec.StatusInvalidDevice
	case errors.Is(err, codec.ErrUserNotFound):
		return http.StatusNotFound, codec.StatusInvalidUser
	case errors.Is(err, codec.ErrDeviceNotFound):
		return http.StatusNotFound, codec.StatusInvalidDevice
	case errors.Is(err, codec.ErrDeviceNotOwned):
		return http.StatusForbidden, codec.StatusDeviceNotOwned
	case errors.Is(err, ErrUnitNotCPM), errors.Is(err, ErrMissingValue), errors.Is(err, ErrBadFunction):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, fanout.ErrShuttingDown):
		return http.StatusServiceUnavailable, codec.InternalStatus(err)
	default:
		return http.StatusInternalServerError, codec.InternalStatus(err)
	}
}
