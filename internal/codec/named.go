// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package codec

import (
	"net/url"
	"strings"

	"github.com/tomtom215/geigerhub/internal/models"
)

// ParseNamed decodes the named-field form. Parameter names are matched
// case-insensitively since firmware sends CPM and uSV. Unknown names are
// ignored; a present stat that is not a number fails with ErrSyntax.
func ParseNamed(params url.Values) (*Submission, error) {
	p := lowerKeys(params)

	userCode, ok := ParseIdentityCode(p["aid"])
	if !ok {
		return nil, ErrInvalidUserID
	}
	deviceCode, ok := ParseIdentityCode(p["gid"])
	if !ok {
		return nil, ErrInvalidDeviceID
	}

	rec, err := ParseNamedRecord(p)
	if err != nil {
		return nil, err
	}

	return &Submission{
		UserCode:   userCode,
		DeviceCode: deviceCode,
		Form:       FormNamed,
		Record:     rec,
	}, nil
}

// ParseNamedRecord builds a record from lower-cased parameter names.
func ParseNamedRecord(p map[string]string) (*models.Record, error) {
	rec := &models.Record{}
	for _, f := range models.StatFields {
		raw, present := p[f.Name]
		if !present {
			continue
		}
		v, err := ParseValue(raw)
		if err != nil {
			return nil, err
		}
		f.Set(rec, v)
	}

	loc, err := parsePosition(p)
	if err != nil {
		return nil, err
	}
	rec.Location = loc

	if t, ok := p["type"]; ok {
		rec.Type = t
	}
	return rec, nil
}

// parsePosition reads lon/lat/alt. Both lon and lat are needed for a
// position; alt alone is ignored.
func parsePosition(p map[string]string) (models.Location, error) {
	rawLon, okLon := p["lon"]
	rawLat, okLat := p["lat"]
	if !okLon || !okLat {
		return nil, nil
	}

	lon, err := ParseValue(rawLon)
	if err != nil {
		return nil, err
	}
	lat, err := ParseValue(rawLat)
	if err != nil {
		return nil, err
	}

	var alt *float64
	if rawAlt, ok := p["alt"]; ok {
		a, err := ParseValue(rawAlt)
		if err != nil {
			return nil, err
		}
		alt = &a
	}
	return models.NewLocation(lon, lat, alt), nil
}

func lowerKeys(params url.Values) map[string]string {
	out := make(map[string]string, len(params))
	for k, vs := range params {
		if len(vs) == 0 {
			continue
		}
		key := strings.ToLower(k)
		if _, dup := out[key]; !dup {
			out[key] = vs[0]
		}
	}
	return out
}
