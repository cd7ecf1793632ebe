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

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/geigerhub/internal/config"
	"github.com/tomtom215/geigerhub/internal/logging"
	"github.com/tomtom215/geigerhub/internal/models"
)

// RedisCache keeps calendars in Redis, one string key per device.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// OpenRedisCache connects and pings the server at cfg.RedisAddr.
func OpenRedisCache(ctx context.Context, cfg *config.CalendarConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisCache(client, cfg.KeyPrefix), nil
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(deviceID string) string {
	return c.prefix + deviceID
}

func (c *RedisCache) Get(ctx context.Context, deviceID string) (*models.DeviceCalendar, error) {
	b, err := c.client.Get(ctx, c.key(deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get calendar: %w", err)
	}
	return decodeEntry(b)
}

// CreatePending runs an optimistic WATCH transaction on the key. A failed
// transaction means a concurrent caller won.
func (c *RedisCache) CreatePending(ctx context.Context, deviceID string, now, staleBefore time.Time) (bool, error) {
	data, err := pendingEntry(deviceID, now)
	if err != nil {
		return false, err
	}

	key := c.key(deviceID)
	created := false
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		case !replaceable(b, staleBefore):
			return nil
		default:
			logging.Warn().Str("device", deviceID).Msg("Replacing stale pending calendar")
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			created = true
		}
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create pending calendar: %w", err)
	}
	return created, nil
}

func (c *RedisCache) Put(ctx context.Context, cal *models.DeviceCalendar) error {
	data, err := json.Marshal(cal)
	if err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	if err := c.client.Set(ctx, c.key(cal.DeviceID), data, 0).Err(); err != nil {
		return fmt.Errorf("put calendar: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, deviceID string) error {
	if err := c.client.Del(ctx, c.key(deviceID)).Err(); err != nil {
		return fmt.Errorf("delete calendar: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
