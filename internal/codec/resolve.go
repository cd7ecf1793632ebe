// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package codec

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/geigerhub/internal/database"
	"github.com/tomtom215/geigerhub/internal/models"
)

// IdentityStore looks users and devices up by identity code.
// *database.DB satisfies it.
type IdentityStore interface {
	GetUserByGmcID(ctx context.Context, gmcID int64) (*models.User, error)
	GetDeviceByGmcID(ctx context.Context, gmcID int64) (*models.Device, error)
}

// Resolver maps identity codes to the owning user and device.
type Resolver struct {
	store IdentityStore
}

// NewResolver creates a resolver over store.
func NewResolver(store IdentityStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the user and device for a pair of identity codes. The
// device must be owned by the user; a device without owner is never
// owned by anyone.
func (r *Resolver) Resolve(ctx context.Context, userCode, deviceCode int64) (*models.User, *models.Device, error) {
	user, err := r.store.GetUserByGmcID(ctx, userCode)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil, ErrUserNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}

	dev, err := r.store.GetDeviceByGmcID(ctx, deviceCode)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lookup device: %w", err)
	}

	if dev.Owner == "" || dev.Owner != user.ID {
		return nil, nil, ErrDeviceNotOwned
	}
	return user, dev, nil
}

// Bind attaches a resolved device and owner to a parsed record.
func Bind(rec *models.Record, user *models.User, dev *models.Device) {
	rec.DeviceID = dev.ID
	rec.UserID = user.ID
}
