// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type stubDrainer struct {
	calls    atomic.Int32
	err      error
	deadline bool
}

func (d *stubDrainer) Shutdown(ctx context.Context) error {
	d.calls.Add(1)
	_, d.deadline = ctx.Deadline()
	return d.err
}

func TestDrainServiceDrainsOnStop(t *testing.T) {
	target := &stubDrainer{}
	svc := NewDrainService("fanout-drain", target, time.Second)

	err := serveAndCancel(t, svc, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
	if target.calls.Load() != 1 {
		t.Errorf("Shutdown called %d times", target.calls.Load())
	}
	if !target.deadline {
		t.Error("drain context has no deadline")
	}
	if svc.String() != "fanout-drain" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestDrainServiceReportsTimeout(t *testing.T) {
	target := &stubDrainer{err: context.DeadlineExceeded}
	err := serveAndCancel(t, NewDrainService("calendar-drain", target, time.Second), nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
}

type stubSessions struct{ closed atomic.Bool }

func (s *stubSessions) CloseAll() { s.closed.Store(true) }

type stubFeed struct {
	closed atomic.Bool
	err    error
}

func (f *stubFeed) Close() error {
	f.closed.Store(true)
	return f.err
}

func TestLivePushServiceClosesOnStop(t *testing.T) {
	sessions := &stubSessions{}
	feed := &stubFeed{}

	if err := serveAndCancel(t, NewLivePushService(sessions, feed), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
	if !sessions.closed.Load() || !feed.closed.Load() {
		t.Errorf("sessions closed=%v feed closed=%v", sessions.closed.Load(), feed.closed.Load())
	}

	feed = &stubFeed{err: errors.New("router stuck")}
	if err := serveAndCancel(t, NewLivePushService(&stubSessions{}, feed), nil); !errors.Is(err, feed.err) {
		t.Errorf("feed close error not returned: %v", err)
	}

	if err := serveAndCancel(t, NewLivePushService(&stubSessions{}, nil), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("nil feed: %v", err)
	}
}

type stubGC struct {
	runs atomic.Int32
	err  error
}

func (g *stubGC) RunGC() error {
	g.runs.Add(1)
	return g.err
}

func TestCacheGCServiceRunsPeriodically(t *testing.T) {
	gc := &stubGC{err: errors.New("disk full")}
	svc := NewCacheGCService(gc, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
	if n := gc.runs.Load(); n < 2 {
		t.Errorf("RunGC called %d times, want several", n)
	}

	if NewCacheGCService(gc, 0).interval != 5*time.Minute {
		t.Error("zero interval not defaulted")
	}
}
