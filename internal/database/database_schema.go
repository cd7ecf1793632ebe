// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package database

import (
	"context"
	"fmt"
	"time"
)

func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables runs the schema statements. Types are restricted to the
// subset DuckDB and PostgreSQL both understand.
func (db *DB) createTables(ctx context.Context) error {
	for _, q := range tableCreationQueries {
		if _, err := db.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", q, err)
		}
	}
	return nil
}

var tableCreationQueries = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		email TEXT,
		gmc_id BIGINT NOT NULL UNIQUE,
		device_limit INTEGER NOT NULL DEFAULT 5,
		alertable BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS devices (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		gmc_id BIGINT NOT NULL UNIQUE,
		owner TEXT,
		lon DOUBLE PRECISION,
		lat DOUBLE PRECISION,
		alt DOUBLE PRECISION,
		disabled BOOLEAN NOT NULL DEFAULT FALSE,
		last_email_alert TIMESTAMP NOT NULL,
		std_dev_alert_limit DOUBLE PRECISION,
		proxies_settings TEXT,
		created_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		device_id TEXT NOT NULL,
		user_id TEXT,
		cpm DOUBLE PRECISION,
		acpm DOUBLE PRECISION,
		usv DOUBLE PRECISION,
		co2 DOUBLE PRECISION,
		hcho DOUBLE PRECISION,
		tmp DOUBLE PRECISION,
		ap DOUBLE PRECISION,
		hmdt DOUBLE PRECISION,
		accy DOUBLE PRECISION,
		date TIMESTAMP NOT NULL,
		ip TEXT,
		type TEXT,
		lon DOUBLE PRECISION,
		lat DOUBLE PRECISION,
		alt DOUBLE PRECISION
	)`,

	`CREATE INDEX IF NOT EXISTS idx_records_device_date ON records (device_id, date)`,
	`CREATE INDEX IF NOT EXISTS idx_devices_owner ON devices (owner)`,
}
