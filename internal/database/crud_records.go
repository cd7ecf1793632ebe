// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/geigerhub/internal/models"
)

const recordColumns = `id, device_id, user_id, cpm, acpm, usv, co2, hcho, tmp, ap, hmdt, accy,
	date, ip, type, lon, lat, alt`

// RecordQuery narrows ListDeviceRecords. Zero values mean unbounded.
type RecordQuery struct {
	Limit int
	Start time.Time
	End   time.Time
}

// InsertRecord persists a record. An empty ID is filled with a new UUID.
func (db *DB) InsertRecord(ctx context.Context, r *models.Record) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	lon, lat, alt := locationArgs(r.Location)

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		r.ID, r.DeviceID, nullableString(r.UserID),
		nullableFloat(r.CPM), nullableFloat(r.ACPM), nullableFloat(r.USV),
		nullableFloat(r.CO2), nullableFloat(r.HCHO), nullableFloat(r.TMP),
		nullableFloat(r.AP), nullableFloat(r.HMDT), nullableFloat(r.ACCY),
		r.Date.UTC(), nullableString(r.IP), nullableString(r.Type), lon, lat, alt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// ListDeviceRecords returns a device's records in chronological order.
// With a limit, the most recent records within the window are kept.
func (db *DB) ListDeviceRecords(ctx context.Context, deviceID string, q RecordQuery) ([]models.Record, error) {
	var (
		sb   strings.Builder
		args = []interface{}{deviceID}
	)
	sb.WriteString(`SELECT ` + recordColumns + ` FROM records WHERE device_id = $1`)
	if !q.Start.IsZero() {
		args = append(args, q.Start.UTC())
		fmt.Fprintf(&sb, " AND date >= $%d", len(args))
	}
	if !q.End.IsZero() {
		args = append(args, q.End.UTC())
		fmt.Fprintf(&sb, " AND date <= $%d", len(args))
	}
	sb.WriteString(" ORDER BY date DESC")
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var recs []models.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}

func scanRecord(rows *sql.Rows) (*models.Record, error) {
	var (
		r                                        models.Record
		userID, ip, typ                          sql.NullString
		cpm, acpm, usv, co2, hcho, tmp, ap, hmdt sql.NullFloat64
		accy, lon, lat, alt                      sql.NullFloat64
	)
	err := rows.Scan(&r.ID, &r.DeviceID, &userID,
		&cpm, &acpm, &usv, &co2, &hcho, &tmp, &ap, &hmdt, &accy,
		&r.Date, &ip, &typ, &lon, &lat, &alt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}

	r.UserID, r.IP, r.Type = userID.String, ip.String, typ.String
	r.CPM, r.ACPM, r.USV = floatPtr(cpm), floatPtr(acpm), floatPtr(usv)
	r.CO2, r.HCHO, r.TMP = floatPtr(co2), floatPtr(hcho), floatPtr(tmp)
	r.AP, r.HMDT, r.ACCY = floatPtr(ap), floatPtr(hmdt), floatPtr(accy)
	r.Date = r.Date.UTC()
	r.Location = scanLocation(lon, lat, alt)
	return &r, nil
}
