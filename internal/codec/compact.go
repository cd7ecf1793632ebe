// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package codec

import (
	"strconv"
	"strings"

	"github.com/tomtom215/geigerhub/internal/models"
)

// ParseCompact decodes the compact form "userCode deviceCode cpm [acpm [usv]]".
// The query decoder has already turned '+' into spaces. Any token count
// outside 3..5 or any malformed token is ErrSyntax.
func ParseCompact(raw string) (*Submission, error) {
	tokens := strings.Fields(raw)
	if len(tokens) < 3 || len(tokens) > 5 {
		return nil, ErrSyntax
	}

	userCode, err := strconv.ParseInt(tokens[0], 10, 64)
	if err != nil {
		return nil, ErrSyntax
	}
	deviceCode, err := strconv.ParseInt(tokens[1], 10, 64)
	if err != nil {
		return nil, ErrSyntax
	}

	rec := &models.Record{}
	positional := []**float64{&rec.CPM, &rec.ACPM, &rec.USV}
	for i, tok := range tokens[2:] {
		v, err := ParseValue(tok)
		if err != nil {
			return nil, err
		}
		*positional[i] = models.Float(v)
	}

	return &Submission{
		UserCode:   userCode,
		DeviceCode: deviceCode,
		Form:       FormCompact,
		Record:     rec,
	}, nil
}
