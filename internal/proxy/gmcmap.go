// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package proxy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tomtom215/geigerhub/internal/codec"
	"github.com/tomtom215/geigerhub/internal/models"
)

// GmcmapSettings identify the account and device on gmcmap.com.
type GmcmapSettings struct {
	UserID   int64 `json:"userId" validate:"gmcid"`
	DeviceID int64 `json:"deviceId" validate:"gmcid"`
}

// Gmcmap relays records with the same named-field form devices use.
type Gmcmap struct {
	httpForwarder
	baseURL string
}

func (g *Gmcmap) ID() string { return GmcmapID }

func (g *Gmcmap) ValidateSettings(_ *models.Device, raw models.ProxySettings) error {
	_, err := decodeSettings[GmcmapSettings](raw, 2)
	return err
}

func (g *Gmcmap) Forward(ctx context.Context, rec *models.Record, dev *models.Device, raw models.ProxySettings) error {
	s, err := decodeSettings[GmcmapSettings](raw, 2)
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("AID", strconv.FormatInt(s.UserID, 10))
	q.Set("GID", strconv.FormatInt(s.DeviceID, 10))
	for _, f := range models.StatFields {
		if v, ok := f.Get(rec); ok {
			q.Set(f.Name, codec.FormatDecimal(v))
		}
	}
	if loc, ok := position(rec, dev); ok {
		q.Set("lon", codec.FormatDecimal(loc.Lon()))
		q.Set("lat", codec.FormatDecimal(loc.Lat()))
		if alt, ok := loc.Alt(); ok {
			q.Set("alt", codec.FormatDecimal(alt))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/log2.asp?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	status, body, err := g.do(req)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("gmcmap returned %d: %s", status, body)
	}
	return nil
}
