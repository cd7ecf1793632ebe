// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

// Package fanout stores an ingested record and hands it to the downstream
// consumers: alerting, mirror forwarding and live push.
//
// Persistence always happens first and is always awaited. Alerting and
// forwarding are deferred by default: they run on a detached context after
// InsertRecord returns and their failures are only logged. Either can be
// joined instead through Options, in which case its error is returned.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/geigerhub/internal/logging"
	"github.com/tomtom215/geigerhub/internal/metrics"
	"github.com/tomtom215/geigerhub/internal/models"
)

// Stage names used in logs and metrics.
const (
	StagePersist = "persist"
	StageAlert   = "alert"
	StageProxy   = "proxy"
	StageLive    = "live"
)

// DefaultDeferredTimeout bounds a deferred task when none is configured.
const DefaultDeferredTimeout = 30 * time.Second

var (
	// ErrNoStats rejects a record without any stat field.
	ErrNoStats = errors.New("record carries no stat field")

	// ErrShuttingDown is logged for deferred work refused during shutdown.
	ErrShuttingDown = errors.New("fan-out is shutting down")
)

// RecordStore persists records.
type RecordStore interface {
	InsertRecord(ctx context.Context, rec *models.Record) error
}

// AlertChecker evaluates a stored record for anomalies.
type AlertChecker interface {
	Check(ctx context.Context, dev *models.Device, owner *models.User, rec *models.Record) (bool, error)
}

// ProxyDispatcher mirrors a stored record to the device's forwarders.
type ProxyDispatcher interface {
	Dispatch(ctx context.Context, dev *models.Device, rec *models.Record) error
}

// UserPublisher delivers intents to a user's live sessions.
type UserPublisher interface {
	Publish(identity string, intent models.Intent)
}

// RecordFeed delivers records to a device's live watchers.
type RecordFeed interface {
	PublishRecord(dev *models.Device, rec *models.Record) error
}

// Options toggles the stages of one InsertRecord call.
type Options struct {
	Persist      bool
	CheckAlert   bool
	ProcessProxy bool
	PublishLive  bool
	DeferAlert   bool
	DeferProxy   bool

	// SetLocationFromDevice copies the device position onto a record that
	// has none, before it is stored.
	SetLocationFromDevice bool

	// Intent names the live event. Empty means LOG2_RECORD.
	Intent models.IntentName
}

// DefaultOptions enables every stage with alerting and forwarding deferred.
func DefaultOptions() Options {
	return Options{
		Persist:      true,
		CheckAlert:   true,
		ProcessProxy: true,
		PublishLive:  true,
		DeferAlert:   true,
		DeferProxy:   true,
		Intent:       models.IntentLog2Record,
	}
}

// Dependencies wires the orchestrator. Nil consumers disable their stage.
type Dependencies struct {
	Store   RecordStore
	Alerts  AlertChecker
	Proxies ProxyDispatcher
	Live    UserPublisher
	Feed    RecordFeed
}

// Orchestrator runs the ingestion pipeline.
type Orchestrator struct {
	deps            Dependencies
	deferredTimeout time.Duration

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// New creates an orchestrator. deferredTimeout bounds each deferred task.
func New(deps Dependencies, deferredTimeout time.Duration) *Orchestrator {
	if deferredTimeout <= 0 {
		deferredTimeout = DefaultDeferredTimeout
	}
	return &Orchestrator{deps: deps, deferredTimeout: deferredTimeout}
}

// InsertRecord stores rec and fans it out. The returned error covers the
// persist stage and any joined stage; deferred stages may still be running
// when it returns. With Persist off nothing fans out, because only stored
// records may leave the pipeline.
func (o *Orchestrator) InsertRecord(ctx context.Context, rec *models.Record, dev *models.Device, owner *models.User, opts Options) error {
	if !rec.HasStats() {
		return ErrNoStats
	}
	if opts.SetLocationFromDevice && rec.Location == nil && dev.Location.Valid() {
		rec.Location = append(models.Location(nil), dev.Location...)
	}

	if !opts.Persist {
		return nil
	}
	if err := o.deps.Store.InsertRecord(ctx, rec); err != nil {
		metrics.RecordStage(StagePersist, err)
		return fmt.Errorf("persist record: %w", err)
	}
	metrics.RecordStage(StagePersist, nil)

	var joined errgroup.Group

	if opts.CheckAlert && o.deps.Alerts != nil {
		task := func(ctx context.Context) error {
			_, err := o.deps.Alerts.Check(ctx, dev, owner, rec)
			return err
		}
		o.schedule(ctx, &joined, StageAlert, opts.DeferAlert, rec, task)
	}

	if opts.ProcessProxy && o.deps.Proxies != nil && len(dev.ProxiesSettings) > 0 {
		task := func(ctx context.Context) error {
			return o.deps.Proxies.Dispatch(ctx, dev, rec)
		}
		o.schedule(ctx, &joined, StageProxy, opts.DeferProxy, rec, task)
	}

	if opts.PublishLive {
		o.publishLive(rec, dev, owner, opts.Intent)
	}

	return joined.Wait()
}

func (o *Orchestrator) schedule(ctx context.Context, joined *errgroup.Group, stage string, deferred bool, rec *models.Record, task func(context.Context) error) {
	if !deferred {
		joined.Go(func() error {
			err := task(ctx)
			metrics.RecordStage(stage, err)
			if err != nil {
				return fmt.Errorf("%s: %w", stage, err)
			}
			return nil
		})
		return
	}
	o.runDeferred(ctx, stage, rec, task)
}

// runDeferred starts task detached from the caller's cancellation. Tasks
// are tracked so Shutdown can wait for them.
func (o *Orchestrator) runDeferred(parent context.Context, stage string, rec *models.Record, task func(context.Context) error) {
	o.mu.Lock()
	if o.closing {
		o.mu.Unlock()
		metrics.FanoutStageTotal.WithLabelValues(stage, metrics.OutcomeSkipped).Inc()
		logging.Warn().Str("stage", stage).Str("record", rec.ID).Err(ErrShuttingDown).Msg("Deferred fan-out skipped")
		return
	}
	o.wg.Add(1)
	o.mu.Unlock()

	metrics.FanoutDeferredInFlight.Inc()
	go func() {
		defer o.wg.Done()
		defer metrics.FanoutDeferredInFlight.Dec()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), o.deferredTimeout)
		defer cancel()

		err := task(ctx)
		metrics.RecordStage(stage, err)
		if err != nil {
			logging.Error().
				Err(err).
				Str("stage", stage).
				Str("record", rec.ID).
				Str("device", rec.DeviceID).
				Msg("Deferred fan-out stage failed")
		}
	}()
}

func (o *Orchestrator) publishLive(rec *models.Record, dev *models.Device, owner *models.User, name models.IntentName) {
	if name == "" {
		name = models.IntentLog2Record
	}
	if o.deps.Live != nil && owner != nil {
		intent := models.NewIntent(name, owner.ID)
		intent.Extras["record"] = rec
		o.deps.Live.Publish(owner.ID, intent)
	}
	if o.deps.Feed != nil {
		if err := o.deps.Feed.PublishRecord(dev, rec); err != nil {
			metrics.RecordStage(StageLive, err)
			logging.Warn().Err(err).Str("device", dev.ID).Msg("Failed to publish record to device feed")
			return
		}
	}
	metrics.RecordStage(StageLive, nil)
}

// Wait blocks until every deferred task started so far has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown refuses new deferred work and waits for running tasks until
// ctx ends.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closing = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("deferred fan-out still running: %w", ctx.Err())
	}
}
