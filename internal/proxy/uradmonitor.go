// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package proxy

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tomtom215/geigerhub/internal/codec"
	"github.com/tomtom215/geigerhub/internal/models"
)

// URadMonitorUploadPath prefixes the encoded path segments.
const URadMonitorUploadPath = "/api/v1/upload/exp"

// URadMonitorSettings are the uRADMonitor account and device identifiers.
type URadMonitorSettings struct {
	UserID   int64  `json:"userId" validate:"gmcid"`
	UserHash string `json:"userHash" validate:"required"`
	DeviceID int64  `json:"deviceId" validate:"gmcid"`
}

// URadMonitor uploads records encoded as path segments.
type URadMonitor struct {
	httpForwarder
	baseURL string
}

func (u *URadMonitor) ID() string { return URadMonitorID }

func (u *URadMonitor) ValidateSettings(_ *models.Device, raw models.ProxySettings) error {
	_, err := decodeSettings[URadMonitorSettings](raw, 3)
	return err
}

func (u *URadMonitor) Forward(ctx context.Context, rec *models.Record, _ *models.Device, raw models.ProxySettings) error {
	s, err := decodeSettings[URadMonitorSettings](raw, 3)
	if err != nil {
		return err
	}

	target := u.baseURL + URadMonitorUploadPath + codec.EncodePathSegments(rec)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("X-User-id", strconv.FormatInt(s.UserID, 10))
	req.Header.Set("X-User-hash", s.UserHash)
	req.Header.Set("X-Device-id", strconv.FormatInt(s.DeviceID, 10))

	status, body, err := u.do(req)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("uradmonitor returned %d: %s", status, body)
	}
	return nil
}
