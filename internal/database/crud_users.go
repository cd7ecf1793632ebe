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
	"time"

	"github.com/tomtom215/geigerhub/internal/models"
)

const userColumns = `id, username, email, gmc_id, device_limit, alertable`

// CreateUser inserts a user. Accounts are managed elsewhere; this exists
// for seeding and tests.
func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO users (id, username, email, gmc_id, device_limit, alertable, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Username, nullableString(u.Email), u.GmcID, u.DeviceLimit, u.Alertable, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUser looks a user up by internal id.
func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByGmcID looks a user up by identity code.
func (db *DB) GetUserByGmcID(ctx context.Context, gmcID int64) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE gmc_id = $1`, gmcID)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u     models.User
		email sql.NullString
	)
	err := row.Scan(&u.ID, &u.Username, &email, &u.GmcID, &u.DeviceLimit, &u.Alertable)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	u.Email = email.String
	return &u, nil
}
