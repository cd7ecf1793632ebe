// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

// Package calendar maintains per-device daily averages.
//
// A calendar is computed once, on the first read that misses, and then
// served from the cache. New records do not update an existing calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/geigerhub/internal/database"
	"github.com/tomtom215/geigerhub/internal/logging"
	"github.com/tomtom215/geigerhub/internal/metrics"
	"github.com/tomtom215/geigerhub/internal/models"
)

const (
	day = 24 * time.Hour

	// DefaultComputeTimeout bounds a background computation.
	DefaultComputeTimeout = 10 * time.Minute
)

// Status of a calendar read.
type Status int

const (
	StatusUnavailable Status = iota
	StatusPending
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	default:
		return "unavailable"
	}
}

// Result of Read. Calendar is set only when Status is StatusReady.
type Result struct {
	Status   Status
	Calendar *models.DeviceCalendar
}

// Store is the record storage the aggregator reads. *database.DB satisfies it.
type Store interface {
	DeviceRecordBounds(ctx context.Context, deviceID string) (first, last time.Time, err error)
	DayAverages(ctx context.Context, deviceID string, start, end time.Time) (*models.Record, bool, error)
}

// Aggregator computes calendars and serves them from a Cache.
type Aggregator struct {
	cache   Cache
	store   Store
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// New creates an aggregator. A non-positive timeout uses DefaultComputeTimeout.
func New(cache Cache, store Store, timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultComputeTimeout
	}
	return &Aggregator{cache: cache, store: store, timeout: timeout, now: time.Now}
}

// Read returns the cached calendar of a device. On a miss it starts a
// background computation and reports StatusUnavailable.
func (a *Aggregator) Read(ctx context.Context, deviceID string) (Result, error) {
	cal, err := a.cache.Get(ctx, deviceID)
	if errors.Is(err, ErrNotFound) {
		a.computeAsync(deviceID)
		return Result{Status: StatusUnavailable}, nil
	}
	if err != nil {
		return Result{}, err
	}
	if cal.InProgress {
		// Left behind by a crash or an abandoned computation.
		if cal.Stale(a.staleBefore()) {
			a.computeAsync(deviceID)
		}
		return Result{Status: StatusPending}, nil
	}
	return Result{Status: StatusReady, Calendar: cal}, nil
}

func (a *Aggregator) computeAsync(deviceID string) {
	a.mu.Lock()
	if a.closing {
		a.mu.Unlock()
		return
	}
	a.wg.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.Compute(ctx, deviceID); err != nil {
			logging.Error().Err(err).Str("device", deviceID).Msg("Calendar computation failed")
		}
	}()
}

// staleBefore is the creation time before which a placeholder cannot
// belong to a running computation.
func (a *Aggregator) staleBefore() time.Time {
	return a.now().Add(-a.timeout)
}

// Compute builds and stores the calendar of a device. If a final entry or a
// fresh placeholder exists, it returns without doing anything.
func (a *Aggregator) Compute(ctx context.Context, deviceID string) error {
	created, err := a.cache.CreatePending(ctx, deviceID, a.now(), a.staleBefore())
	if err != nil {
		return err
	}
	if !created {
		metrics.CalendarComputations.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return nil
	}

	start := time.Now()
	cal, err := a.build(ctx, deviceID)
	if err == nil {
		err = a.cache.Put(ctx, cal)
	}
	metrics.RecordCalendar(time.Since(start), err)

	if err != nil {
		// Drop the placeholder so the next read retries.
		if derr := a.cache.Delete(context.WithoutCancel(ctx), deviceID); derr != nil {
			logging.Warn().Err(derr).Str("device", deviceID).Msg("Failed to remove pending calendar")
		}
		return err
	}

	logging.Debug().Str("device", deviceID).Int("days", len(cal.Recs)).Dur("took", time.Since(start)).Msg("Calendar computed")
	return nil
}

// build averages each UTC day between the first and last record.
func (a *Aggregator) build(ctx context.Context, deviceID string) (*models.DeviceCalendar, error) {
	cal := &models.DeviceCalendar{DeviceID: deviceID, Recs: []models.Record{}}

	first, last, err := a.store.DeviceRecordBounds(ctx, deviceID)
	if errors.Is(err, database.ErrNoData) {
		cal.CreatedAt = a.now().UTC()
		return cal, nil
	}
	if err != nil {
		return nil, fmt.Errorf("record bounds: %w", err)
	}

	for d := first.UTC().Truncate(day); !d.After(last); d = d.Add(day) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, ok, err := a.store.DayAverages(ctx, deviceID, d, d.Add(day))
		if err != nil {
			return nil, fmt.Errorf("averages for %s: %w", d.Format(time.DateOnly), err)
		}
		if ok {
			cal.Recs = append(cal.Recs, *rec)
		}
	}

	cal.CreatedAt = a.now().UTC()
	return cal, nil
}

// Wait blocks until background computations finish.
func (a *Aggregator) Wait() {
	a.wg.Wait()
}

// Shutdown stops new background computations and waits for running ones
// or for ctx to end.
func (a *Aggregator) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	a.closing = true
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
