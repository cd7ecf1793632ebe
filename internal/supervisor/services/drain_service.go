// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package services

import (
	"context"
	"fmt"
	"time"
)

// Drainer is satisfied by components that run background work and can
// wait for it to finish: *fanout.Orchestrator and *calendar.Aggregator.
type Drainer interface {
	Shutdown(ctx context.Context) error
}

// DrainService holds a Drainer open for the lifetime of the tree and
// drains it when the tree stops. Deferred fan-out tasks and background
// calendar computations are given timeout to complete.
type DrainService struct {
	target  Drainer
	timeout time.Duration
	name    string
}

// NewDrainService wraps target under name.
func NewDrainService(name string, target Drainer, timeout time.Duration) *DrainService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DrainService{target: target, timeout: timeout, name: name}
}

// Serve blocks until ctx is canceled and then drains the target.
// A restart by the supervisor after a drain is harmless: the target keeps
// refusing new work and the next drain returns at once.
func (d *DrainService) Serve(ctx context.Context) error {
	<-ctx.Done()

	drainCtx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.target.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("%s drain: %w", d.name, err)
	}
	return ctx.Err()
}

func (d *DrainService) String() string {
	return d.name
}
