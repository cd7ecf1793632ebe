// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package calendar

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/geigerhub/internal/config"
	"github.com/tomtom215/geigerhub/internal/database"
	"github.com/tomtom215/geigerhub/internal/models"
)

type window struct{ start, end time.Time }

// fakeStore has one record per listed time, each with cpm equal to its hour.
type fakeStore struct {
	dates   []time.Time
	err     error
	block   chan struct{}
	mu      sync.Mutex
	windows []window
	calls   atomic.Int32
}

func (f *fakeStore) DeviceRecordBounds(_ context.Context, _ string) (time.Time, time.Time, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	if len(f.dates) == 0 {
		return time.Time{}, time.Time{}, database.ErrNoData
	}
	return f.dates[0], f.dates[len(f.dates)-1], nil
}

func (f *fakeStore) DayAverages(_ context.Context, _ string, start, end time.Time) (*models.Record, bool, error) {
	f.mu.Lock()
	f.windows = append(f.windows, window{start, end})
	f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}

	var sum float64
	var n int
	for _, d := range f.dates {
		if !d.Before(start) && d.Before(end) {
			sum += float64(d.Hour())
			n++
		}
	}
	if n == 0 {
		return nil, false, nil
	}
	return &models.Record{Date: start, CPM: models.Float(sum / float64(n))}, true, nil
}

func newTestCache(t *testing.T) *BadgerCache {
	t.Helper()
	c, err := OpenBadgerCache(&config.CalendarConfig{Backend: BackendBadger, InMemory: true, KeyPrefix: "calendar:"})
	if err != nil {
		t.Fatalf("OpenBadgerCache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func utc(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func TestComputeDailyAverages(t *testing.T) {
	store := &fakeStore{dates: []time.Time{
		utc(2024, 3, 1, 10),
		utc(2024, 3, 1, 20),
		utc(2024, 3, 3, 6),
	}}
	cache := newTestCache(t)
	a := New(cache, store, 0)
	ctx := context.Background()

	if err := a.Compute(ctx, "dev-1"); err != nil {
		t.Fatalf("Compute: %v", err)
	}

	res, err := a.Read(ctx, "dev-1")
	if err != nil || res.Status != StatusReady {
		t.Fatalf("Read = %v, %v", res.Status, err)
	}
	recs := res.Calendar.Recs
	if len(recs) != 2 {
		t.Fatalf("got %d days, want 2 (empty day skipped)", len(recs))
	}
	if !recs[0].Date.Equal(utc(2024, 3, 1, 0)) || *recs[0].CPM != 15 {
		t.Errorf("day 1 = %v cpm %v", recs[0].Date, *recs[0].CPM)
	}
	if !recs[1].Date.Equal(utc(2024, 3, 3, 0)) || *recs[1].CPM != 6 {
		t.Errorf("day 2 = %v cpm %v", recs[1].Date, *recs[1].CPM)
	}
	if res.Calendar.InProgress {
		t.Error("final calendar still marked in progress")
	}

	if len(store.windows) != 3 {
		t.Fatalf("queried %d windows, want 3", len(store.windows))
	}
	for _, w := range store.windows {
		if w.end.Sub(w.start) != 24*time.Hour || w.start.Hour() != 0 {
			t.Errorf("bad window %v..%v", w.start, w.end)
		}
	}
}

func TestComputeIsSingleFlight(t *testing.T) {
	store := &fakeStore{dates: []time.Time{utc(2024, 1, 1, 1)}, block: make(chan struct{})}
	a := New(newTestCache(t), store, 0)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- a.Compute(ctx, "dev-1") }()

	// Wait until the first computation holds the placeholder.
	deadline := time.Now().Add(2 * time.Second)
	for store.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	res, err := a.Read(ctx, "dev-1")
	if err != nil || res.Status != StatusPending {
		t.Fatalf("Read while computing = %v, %v", res.Status, err)
	}
	if err := a.Compute(ctx, "dev-1"); err != nil {
		t.Fatalf("second Compute: %v", err)
	}

	close(store.block)
	if err := <-done; err != nil {
		t.Fatalf("first Compute: %v", err)
	}
	a.Wait()
	if store.calls.Load() != 1 {
		t.Errorf("bounds queried %d times, want 1", store.calls.Load())
	}
}

func TestReadMissStartsComputation(t *testing.T) {
	store := &fakeStore{dates: []time.Time{utc(2024, 1, 1, 4)}}
	a := New(newTestCache(t), store, 0)
	ctx := context.Background()

	res, err := a.Read(ctx, "dev-1")
	if err != nil || res.Status != StatusUnavailable {
		t.Fatalf("first Read = %v, %v", res.Status, err)
	}
	a.Wait()

	res, err = a.Read(ctx, "dev-1")
	if err != nil || res.Status != StatusReady || len(res.Calendar.Recs) != 1 {
		t.Fatalf("second Read = %+v, %v", res, err)
	}
}

func TestFailedComputeRemovesPlaceholder(t *testing.T) {
	store := &fakeStore{dates: []time.Time{utc(2024, 1, 1, 4)}, err: errors.New("disk on fire")}
	cache := newTestCache(t)
	a := New(cache, store, 0)
	ctx := context.Background()

	if err := a.Compute(ctx, "dev-1"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := cache.Get(ctx, "dev-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("placeholder left behind: %v", err)
	}

	store.err = nil
	if err := a.Compute(ctx, "dev-1"); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestComputeWithoutRecords(t *testing.T) {
	a := New(newTestCache(t), &fakeStore{}, 0)
	ctx := context.Background()

	if err := a.Compute(ctx, "dev-1"); err != nil {
		t.Fatalf("Compute: %v", err)
	}
	res, _ := a.Read(ctx, "dev-1")
	if res.Status != StatusReady || len(res.Calendar.Recs) != 0 {
		t.Errorf("Read = %+v", res)
	}
}

func TestShutdownRefusesNewWork(t *testing.T) {
	store := &fakeStore{dates: []time.Time{utc(2024, 1, 1, 4)}}
	a := New(newTestCache(t), store, 0)

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if res, _ := a.Read(context.Background(), "dev-1"); res.Status != StatusUnavailable {
		t.Errorf("status = %v", res.Status)
	}
	a.Wait()
	if store.calls.Load() != 0 {
		t.Error("computation started after shutdown")
	}
}

func TestBadgerCreatePending(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	now := utc(2024, 5, 5, 5)

	staleBefore := now.Add(-time.Hour)

	created, err := c.CreatePending(ctx, "dev-1", now, staleBefore)
	if err != nil || !created {
		t.Fatalf("first CreatePending = %v, %v", created, err)
	}
	created, err = c.CreatePending(ctx, "dev-1", now, staleBefore)
	if err != nil || created {
		t.Fatalf("second CreatePending = %v, %v", created, err)
	}

	cal, err := c.Get(ctx, "dev-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !cal.InProgress || cal.Recs == nil || !cal.CreatedAt.Equal(now) {
		t.Errorf("placeholder = %+v", cal)
	}

	if err := c.Delete(ctx, "dev-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := c.Delete(ctx, "dev-1"); err != nil {
		t.Errorf("Delete of missing key: %v", err)
	}
	if err := c.RunGC(); err != nil {
		t.Errorf("RunGC in memory: %v", err)
	}
}

func TestBadgerCreatePendingReplacesStale(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	old := utc(2024, 5, 1, 0)
	now := utc(2024, 5, 4, 0)

	if created, err := c.CreatePending(ctx, "dev-1", old, old.Add(-time.Hour)); err != nil || !created {
		t.Fatalf("seed placeholder = %v, %v", created, err)
	}
	created, err := c.CreatePending(ctx, "dev-1", now, now.Add(-time.Hour))
	if err != nil || !created {
		t.Fatalf("stale placeholder not replaced: %v, %v", created, err)
	}
	cal, _ := c.Get(ctx, "dev-1")
	if !cal.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", cal.CreatedAt, now)
	}

	// A final calendar is never replaced, however old.
	if err := c.Put(ctx, &models.DeviceCalendar{DeviceID: "dev-2", CreatedAt: old, Recs: []models.Record{}}); err != nil {
		t.Fatal(err)
	}
	if created, err := c.CreatePending(ctx, "dev-2", now, now.Add(-time.Hour)); err != nil || created {
		t.Errorf("final calendar replaced: %v, %v", created, err)
	}
}

func TestStalePlaceholderSurvivingRestartIsRecomputed(t *testing.T) {
	cfg := &config.CalendarConfig{Backend: BackendBadger, BadgerPath: t.TempDir(), KeyPrefix: "calendar:"}
	ctx := context.Background()

	c, err := OpenBadgerCache(cfg)
	if err != nil {
		t.Fatalf("OpenBadgerCache: %v", err)
	}
	crashed := time.Now().Add(-72 * time.Hour)
	if _, err := c.CreatePending(ctx, "dev-1", crashed, crashed.Add(-time.Hour)); err != nil {
		t.Fatalf("CreatePending: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c, err = OpenBadgerCache(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	store := &fakeStore{dates: []time.Time{utc(2024, 1, 1, 4)}}
	a := New(c, store, time.Minute)

	res, err := a.Read(ctx, "dev-1")
	if err != nil || res.Status != StatusPending {
		t.Fatalf("first Read = %v, %v", res.Status, err)
	}
	a.Wait()

	res, err = a.Read(ctx, "dev-1")
	if err != nil || res.Status != StatusReady || len(res.Calendar.Recs) != 1 {
		t.Fatalf("second Read = %+v, %v", res, err)
	}
}

func TestFreshPlaceholderIsLeftAlone(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	store := &fakeStore{dates: []time.Time{utc(2024, 1, 1, 4)}}
	a := New(c, store, time.Minute)

	if _, err := c.CreatePending(ctx, "dev-1", time.Now(), time.Now().Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}
	if res, _ := a.Read(ctx, "dev-1"); res.Status != StatusPending {
		t.Fatalf("status = %v", res.Status)
	}
	a.Wait()
	if store.calls.Load() != 0 {
		t.Error("computation started over a running one")
	}
}

func TestComputeAgainstDatabase(t *testing.T) {
	db, err := database.New(&config.DatabaseConfig{
		Driver:    database.DriverDuckDB,
		Path:      ":memory:",
		MaxMemory: "256MB",
		Threads:   1,
	})
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()

	for i, ts := range []time.Time{utc(2024, 6, 1, 1), utc(2024, 6, 1, 23), utc(2024, 6, 2, 0)} {
		rec := &models.Record{DeviceID: "dev-1", Date: ts, CPM: models.Float(float64(10 * (i + 1)))}
		if err := db.InsertRecord(ctx, rec); err != nil {
			t.Fatalf("InsertRecord: %v", err)
		}
	}

	a := New(newTestCache(t), db, 0)
	if err := a.Compute(ctx, "dev-1"); err != nil {
		t.Fatalf("Compute: %v", err)
	}
	res, err := a.Read(ctx, "dev-1")
	if err != nil || res.Status != StatusReady {
		t.Fatalf("Read = %v, %v", res.Status, err)
	}
	if len(res.Calendar.Recs) != 2 || *res.Calendar.Recs[0].CPM != 15 || *res.Calendar.Recs[1].CPM != 30 {
		t.Errorf("recs = %+v", res.Calendar.Recs)
	}
}
