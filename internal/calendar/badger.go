// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/geigerhub/internal/config"
	"github.com/tomtom215/geigerhub/internal/logging"
	"github.com/tomtom215/geigerhub/internal/models"
)

const badgerGCRatio = 0.5

// BadgerCache keeps calendars in an embedded BadgerDB.
type BadgerCache struct {
	db       *badger.DB
	prefix   string
	inMemory bool
}

// OpenBadgerCache opens the database at cfg.BadgerPath, or an in-memory
// one when cfg.InMemory is set.
func OpenBadgerCache(cfg *config.CalendarConfig) (*BadgerCache, error) {
	opts := badger.DefaultOptions(cfg.BadgerPath)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.BadgerPath).
		Bool("in_memory", cfg.InMemory).
		Msg("Calendar cache opened")
	return &BadgerCache{db: db, prefix: cfg.KeyPrefix, inMemory: cfg.InMemory}, nil
}

func (c *BadgerCache) key(deviceID string) []byte {
	return []byte(c.prefix + deviceID)
}

func (c *BadgerCache) Get(_ context.Context, deviceID string) (*models.DeviceCalendar, error) {
	var cal *models.DeviceCalendar
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.key(deviceID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			cal, err = decodeEntry(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return cal, nil
}

// CreatePending checks and writes in one transaction. A commit conflict
// means a concurrent caller won.
func (c *BadgerCache) CreatePending(_ context.Context, deviceID string, now, staleBefore time.Time) (bool, error) {
	data, err := pendingEntry(deviceID, now)
	if err != nil {
		return false, err
	}

	created := false
	err = c.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(c.key(deviceID))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			stale := false
			if err := item.Value(func(val []byte) error {
				stale = replaceable(val, staleBefore)
				return nil
			}); err != nil {
				return err
			}
			if !stale {
				return nil
			}
			logging.Warn().Str("device", deviceID).Msg("Replacing stale pending calendar")
		}
		if err := txn.Set(c.key(deviceID), data); err != nil {
			return err
		}
		created = true
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create pending calendar: %w", err)
	}
	return created, nil
}

func (c *BadgerCache) Put(_ context.Context, cal *models.DeviceCalendar) error {
	data, err := json.Marshal(cal)
	if err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(c.key(cal.DeviceID), data)
	})
}

func (c *BadgerCache) Delete(_ context.Context, deviceID string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(c.key(deviceID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// RunGC reclaims value log space until nothing is left to rewrite.
func (c *BadgerCache) RunGC() error {
	if c.inMemory {
		return nil
	}
	for {
		err := c.db.RunValueLogGC(badgerGCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

func (c *BadgerCache) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	return nil
}
