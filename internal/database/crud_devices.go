// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/geigerhub/internal/models"
)

const deviceColumns = `id, name, gmc_id, owner, lon, lat, alt, disabled, last_email_alert,
	std_dev_alert_limit, proxies_settings, created_at`

// CreateDevice inserts a new device.
func (db *DB) CreateDevice(ctx context.Context, d *models.Device) error {
	settings, err := encodeProxiesSettings(d.ProxiesSettings)
	if err != nil {
		return err
	}
	lon, lat, alt := locationArgs(d.Location)

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		d.ID, d.Name, d.GmcID, nullableString(d.Owner), lon, lat, alt, d.Disabled,
		d.LastEmailAlert.UTC(), nullableFloat(d.StdDevAlertLimit), settings, d.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert device: %w", err)
	}
	return nil
}

// UpdateDevice writes the owner-editable fields. The identity code and
// owner never change after creation.
func (db *DB) UpdateDevice(ctx context.Context, d *models.Device) error {
	settings, err := encodeProxiesSettings(d.ProxiesSettings)
	if err != nil {
		return err
	}
	lon, lat, alt := locationArgs(d.Location)

	res, err := db.conn.ExecContext(ctx, `
		UPDATE devices
		SET name = $2, lon = $3, lat = $4, alt = $5, disabled = $6,
			std_dev_alert_limit = $7, proxies_settings = $8
		WHERE id = $1`,
		d.ID, d.Name, lon, lat, alt, d.Disabled, nullableFloat(d.StdDevAlertLimit), settings,
	)
	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}
	return expectAffected(res)
}

// DeleteDevice removes a device and its records.
func (db *DB) DeleteDevice(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE device_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete device records: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	if err := expectAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

// SetDeviceLastAlert records when the last alert email went out.
func (db *DB) SetDeviceLastAlert(ctx context.Context, id string, at time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE devices SET last_email_alert = $2 WHERE id = $1`, id, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to update last alert: %w", err)
	}
	return expectAffected(res)
}

// GetDevice looks a device up by internal id.
func (db *DB) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id)
	return scanDevice(row)
}

// GetDeviceByGmcID looks a device up by identity code.
func (db *DB) GetDeviceByGmcID(ctx context.Context, gmcID int64) (*models.Device, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE gmc_id = $1`, gmcID)
	return scanDevice(row)
}

// CountDevicesByOwner returns how many devices a user owns.
func (db *DB) CountDevicesByOwner(ctx context.Context, owner string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM devices WHERE owner = $1`, owner).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count devices: %w", err)
	}
	return n, nil
}

func scanDevice(row *sql.Row) (*models.Device, error) {
	var (
		d             models.Device
		owner         sql.NullString
		lon, lat, alt sql.NullFloat64
		limit         sql.NullFloat64
		settings      sql.NullString
	)
	err := row.Scan(&d.ID, &d.Name, &d.GmcID, &owner, &lon, &lat, &alt, &d.Disabled,
		&d.LastEmailAlert, &limit, &settings, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan device: %w", err)
	}

	d.Owner = owner.String
	d.Location = scanLocation(lon, lat, alt)
	d.StdDevAlertLimit = floatPtr(limit)
	d.LastEmailAlert = d.LastEmailAlert.UTC()
	d.CreatedAt = d.CreatedAt.UTC()

	if settings.Valid && settings.String != "" {
		// Numbers stay json.Number so large identity codes survive the round trip.
		dec := json.NewDecoder(strings.NewReader(settings.String))
		dec.UseNumber()
		if err := dec.Decode(&d.ProxiesSettings); err != nil {
			return nil, fmt.Errorf("failed to decode proxies settings: %w", err)
		}
	}
	return &d, nil
}

func encodeProxiesSettings(s map[string]models.ProxySettings) (interface{}, error) {
	if len(s) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode proxies settings: %w", err)
	}
	return string(b), nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
