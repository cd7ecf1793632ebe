// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package services

import (
	"context"
	"time"

	"github.com/tomtom215/geigerhub/internal/logging"
)

// GarbageCollector is satisfied by *calendar.BadgerCache.
type GarbageCollector interface {
	RunGC() error
}

// CacheGCService reclaims Badger value log space on a fixed interval.
// Only the embedded calendar cache needs it; Redis manages its own memory.
type CacheGCService struct {
	cache    GarbageCollector
	interval time.Duration
}

// NewCacheGCService runs cache.RunGC every interval. Non-positive
// intervals fall back to five minutes.
func NewCacheGCService(cache GarbageCollector, interval time.Duration) *CacheGCService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CacheGCService{cache: cache, interval: interval}
}

// Serve collects until ctx is canceled. GC failures are logged and do not
// stop the service.
func (c *CacheGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.cache.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("Calendar cache GC failed")
			}
		}
	}
}

func (c *CacheGCService) String() string {
	return "calendar-cache-gc"
}
