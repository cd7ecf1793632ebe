// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package codec

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/tomtom215/geigerhub/internal/models"
)

var (
	csvPublicHeader = []string{"CPM", "ACPM", "USV", "DATE", "TYPE", "LON", "LAT"}
	csvOwnerHeader  = []string{
		"ID", "DEVICEID", "CPM", "ACPM", "USV", "CO2", "HCHO", "TMP", "AP", "HMDT", "ACCY",
		"DATE", "IP", "TYPE", "LON", "LAT",
	}
)

// WriteCSV writes a device timeline. Owners get every column; everyone
// else gets the reduced public set. Dates are Unix milliseconds and
// absent values are empty cells.
func WriteCSV(w io.Writer, recs []models.Record, owner bool) error {
	cw := csv.NewWriter(w)

	header := csvPublicHeader
	if owner {
		header = csvOwnerHeader
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i := range recs {
		r := &recs[i]
		lon, lat := "", ""
		if r.Location.Valid() {
			lon = strconv.FormatFloat(r.Location.Lon(), 'f', -1, 64)
			lat = strconv.FormatFloat(r.Location.Lat(), 'f', -1, 64)
		}
		date := strconv.FormatInt(r.Date.UnixMilli(), 10)

		var row []string
		if owner {
			row = []string{
				r.ID, r.DeviceID,
				cell(r.CPM), cell(r.ACPM), cell(r.USV), cell(r.CO2), cell(r.HCHO),
				cell(r.TMP), cell(r.AP), cell(r.HMDT), cell(r.ACCY),
				date, r.IP, textCell(r.Type), lon, lat,
			}
		} else {
			row = []string{cell(r.CPM), cell(r.ACPM), cell(r.USV), date, textCell(r.Type), lon, lat}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func cell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// textCell neutralizes client text that a spreadsheet would evaluate as a
// formula.
func textCell(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}
