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
	"strings"

	"github.com/tomtom215/geigerhub/internal/codec"
	"github.com/tomtom215/geigerhub/internal/models"
)

const radmonOK = "OK<br>"

// RadmonSettings are the radmon.org station credentials.
type RadmonSettings struct {
	User     string `json:"user" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Radmon submits the cpm of each record to radmon.org.
type Radmon struct {
	httpForwarder
	baseURL string
}

func (r *Radmon) ID() string { return RadmonID }

func (r *Radmon) ValidateSettings(_ *models.Device, raw models.ProxySettings) error {
	_, err := decodeSettings[RadmonSettings](raw, 2)
	return err
}

func (r *Radmon) Forward(ctx context.Context, rec *models.Record, _ *models.Device, raw models.ProxySettings) error {
	s, err := decodeSettings[RadmonSettings](raw, 2)
	if err != nil {
		return err
	}
	if rec.CPM == nil {
		return ErrNoCPM
	}

	q := url.Values{}
	q.Set("function", "submit")
	q.Set("user", s.User)
	q.Set("password", s.Password)
	q.Set("value", codec.FormatDecimal(*rec.CPM))
	q.Set("unit", "CPM")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/radmon.php?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	_, body, err := r.do(req)
	if err != nil {
		return err
	}
	if strings.TrimSpace(body) != radmonOK {
		return fmt.Errorf("radmon rejected record: %s", body)
	}
	return nil
}
