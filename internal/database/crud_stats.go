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

	"github.com/tomtom215/geigerhub/internal/models"
)

// DeviceStats aggregates one stat field over a device's most recent
// sampleSize records carrying that field. sampleSize <= 0 covers all
// history. The standard deviation is the population one.
//
// The field name is inlined into SQL, so it must come from the stat table.
func (db *DB) DeviceStats(ctx context.Context, field, deviceID string, sampleSize int) (*models.DeviceStats, error) {
	if _, ok := models.LookupStatField(field); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}

	limit := ""
	if sampleSize > 0 {
		limit = fmt.Sprintf(" LIMIT %d", sampleSize)
	}
	query := fmt.Sprintf(`
		SELECT avg(v), min(v), max(v), stddev_pop(v), count(v)
		FROM (
			SELECT %[1]s AS v FROM records
			WHERE device_id = $1 AND %[1]s IS NOT NULL
			ORDER BY date DESC%[2]s
		) recent`, field, limit)

	var avg, minV, maxV, std sql.NullFloat64
	var n int64
	if err := db.conn.QueryRowContext(ctx, query, deviceID).Scan(&avg, &minV, &maxV, &std, &n); err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	if n == 0 || !avg.Valid {
		return nil, ErrNoData
	}

	return &models.DeviceStats{
		Field:      field,
		Device:     deviceID,
		Avg:        avg.Float64,
		Min:        minV.Float64,
		Max:        maxV.Float64,
		StdDev:     std.Float64,
		SampleSize: n,
	}, nil
}

// DeviceRecordBounds returns the earliest and latest record dates of a device.
func (db *DB) DeviceRecordBounds(ctx context.Context, deviceID string) (first, last time.Time, err error) {
	var lo, hi sql.NullTime
	err = db.conn.QueryRowContext(ctx,
		`SELECT min(date), max(date) FROM records WHERE device_id = $1`, deviceID,
	).Scan(&lo, &hi)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("failed to query record bounds: %w", err)
	}
	if !lo.Valid || !hi.Valid {
		return time.Time{}, time.Time{}, ErrNoData
	}
	return lo.Time.UTC(), hi.Time.UTC(), nil
}

// dayAveragesQuery averages every stat field over a half-open window.
var dayAveragesQuery = func() string {
	cols := make([]string, 0, len(models.StatFields)+1)
	cols = append(cols, "count(*)")
	for _, f := range models.StatFields {
		cols = append(cols, "avg("+f.Name+")")
	}
	return `SELECT ` + strings.Join(cols, ", ") +
		` FROM records WHERE device_id = $1 AND date >= $2 AND date < $3`
}()

// DayAverages averages each stat field over records in [start, end). The
// returned record is dated start. ok is false when the window is empty.
func (db *DB) DayAverages(ctx context.Context, deviceID string, start, end time.Time) (rec *models.Record, ok bool, err error) {
	var n int64
	avgs := make([]sql.NullFloat64, len(models.StatFields))
	dest := make([]interface{}, 0, len(avgs)+1)
	dest = append(dest, &n)
	for i := range avgs {
		dest = append(dest, &avgs[i])
	}

	err = db.conn.QueryRowContext(ctx, dayAveragesQuery, deviceID, start.UTC(), end.UTC()).Scan(dest...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to compute day averages: %w", err)
	}
	if n == 0 {
		return nil, false, nil
	}

	rec = &models.Record{Date: start.UTC()}
	for i, f := range models.StatFields {
		if avgs[i].Valid {
			f.Set(rec, avgs[i].Float64)
		}
	}
	return rec, true, nil
}
