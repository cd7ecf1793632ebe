// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package codec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/geigerhub/internal/models"
)

// uRADMonitor EXP protocol field order. The segment index is position+1.
var pathSegmentFields = []string{
	"date", "tmp", "press", "hmdt", "lum", "voc", "co2", "hcho",
	"pm25", "batt", "cpm", "invertVolt", "invertDuty", "versionHw", "versionSw", "idTube",
}

const pathSegmentDateIndex = 1

// EncodePathSegments renders a record as "/II/value" pairs in ascending
// index order. The date goes out in whole seconds. Stat fields with no
// slot in the protocol table are not sent.
func EncodePathSegments(rec *models.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "/%02X/%d", pathSegmentDateIndex, rec.Date.Unix())

	for idx, name := range pathSegmentFields {
		f, ok := models.LookupStatField(name)
		if !ok {
			continue
		}
		v, ok := f.Get(rec)
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "/%02X/%s", idx+1, FormatDecimal(v))
	}
	return sb.String()
}

// DecodePathSegments parses "/II/value" pairs back into a record. Protocol
// fields that are neither the date nor a stat field are skipped.
func DecodePathSegments(path string) (*models.Record, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 1 && parts[0] == "" {
		return nil, ErrSyntax
	}
	if len(parts)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of path segments", ErrSyntax)
	}

	rec := &models.Record{}
	for i := 0; i < len(parts); i += 2 {
		idx, err := strconv.ParseUint(parts[i], 16, 8)
		if err != nil || idx < 1 || int(idx) > len(pathSegmentFields) {
			return nil, fmt.Errorf("%w: bad field index %q", ErrSyntax, parts[i])
		}
		name, raw := pathSegmentFields[idx-1], parts[i+1]

		if idx == pathSegmentDateIndex {
			secs, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad date %q", ErrSyntax, raw)
			}
			rec.Date = time.Unix(secs, 0).UTC()
			continue
		}

		f, ok := models.LookupStatField(name)
		if !ok {
			continue
		}
		v, err := ParseValue(raw)
		if err != nil {
			return nil, err
		}
		f.Set(rec, v)
	}
	return rec, nil
}

// FormatDecimal prints the shortest exact form of v and keeps a ".0" on
// integral values, as the mirror services expect.
func FormatDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
