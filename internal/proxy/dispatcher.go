// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package proxy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/geigerhub/internal/config"
	"github.com/tomtom215/geigerhub/internal/logging"
	"github.com/tomtom215/geigerhub/internal/metrics"
	"github.com/tomtom215/geigerhub/internal/models"
)

// guarded wraps a forwarder with one limiter for the remote service and
// one breaker per device it has served.
type guarded struct {
	Forwarder
	cfg     *config.ProxyConfig
	limiter *rate.Limiter

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

// breaker returns the device's breaker, creating it on first use.
func (g *guarded) breaker(deviceID string) *gobreaker.CircuitBreaker[struct{}] {
	g.mu.Lock()
	defer g.mu.Unlock()
	cb, ok := g.breakers[deviceID]
	if !ok {
		cb = newBreaker(g.ID(), deviceID, g.cfg)
		g.breakers[deviceID] = cb
	}
	return cb
}

// Dispatcher fans a record out to the forwarders configured on its device.
type Dispatcher struct {
	forwarders map[string]*guarded
}

// NewDispatcher wraps each forwarder. A zero RatePerSecond disables rate limiting.
func NewDispatcher(cfg *config.ProxyConfig, forwarders ...Forwarder) *Dispatcher {
	d := &Dispatcher{forwarders: make(map[string]*guarded, len(forwarders))}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	for _, f := range forwarders {
		metrics.CircuitBreakersTripped.WithLabelValues(f.ID()).Set(0)
		d.forwarders[f.ID()] = &guarded{
			Forwarder: f,
			cfg:       cfg,
			limiter:   rate.NewLimiter(limit, burst),
			breakers:  make(map[string]*gobreaker.CircuitBreaker[struct{}]),
		}
	}
	return d
}

// newBreaker opens after a 60% failure rate over at least 10 calls.
func newBreaker(forwarder, deviceID string, cfg *config.ProxyConfig) *gobreaker.CircuitBreaker[struct{}] {
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        forwarder + "/" + deviceID,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				logging.Warn().Str("forwarder", forwarder).Str("device", deviceID).Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
				return true
			}
			return false
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			logging.Info().Str("forwarder", forwarder).Str("device", deviceID).Str("from", from.String()).Str("to", to.String()).Msg("[CIRCUIT BREAKER] State transition")
			switch {
			case from == gobreaker.StateClosed:
				metrics.CircuitBreakersTripped.WithLabelValues(forwarder).Inc()
			case to == gobreaker.StateClosed:
				metrics.CircuitBreakersTripped.WithLabelValues(forwarder).Dec()
			}
		},
	})
}

// IDs returns the registered forwarder IDs in order.
func (d *Dispatcher) IDs() []string {
	ids := make([]string, 0, len(d.forwarders))
	for id := range d.forwarders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks every entry of a device's forwarder mapping.
func (d *Dispatcher) Validate(dev *models.Device, settings map[string]models.ProxySettings) error {
	for id, raw := range settings {
		f, ok := d.forwarders[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownForwarder, id)
		}
		if err := f.ValidateSettings(dev, raw); err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
	}
	return nil
}

// Dispatch invokes every forwarder named by dev concurrently and waits for
// all of them. Failures are logged per forwarder and joined into the result.
func (d *Dispatcher) Dispatch(ctx context.Context, dev *models.Device, rec *models.Record) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for id, settings := range dev.ProxiesSettings {
		f, ok := d.forwarders[id]
		if !ok {
			logging.Warn().Str("device", dev.ID).Str("forwarder", id).Msg("Skipping unknown forwarder")
			continue
		}

		wg.Add(1)
		go func(f *guarded, settings models.ProxySettings) {
			defer wg.Done()
			if err := d.forward(ctx, f, dev, rec, settings); err != nil {
				logging.Error().Err(err).Str("device", dev.ID).Str("forwarder", f.ID()).Msg("Failed to forward record")
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", f.ID(), err))
				mu.Unlock()
			}
		}(f, settings)
	}

	wg.Wait()
	return errors.Join(errs...)
}

func (d *Dispatcher) forward(ctx context.Context, f *guarded, dev *models.Device, rec *models.Record, settings models.ProxySettings) error {
	if err := f.limiter.Wait(ctx); err != nil {
		metrics.ForwarderRequests.WithLabelValues(f.ID(), "rate_limited").Inc()
		return fmt.Errorf("rate limit: %w", err)
	}

	start := time.Now()
	_, err := f.breaker(dev.ID).Execute(func() (struct{}, error) {
		return struct{}{}, f.Forward(ctx, rec, dev, settings)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.ForwarderRequests.WithLabelValues(f.ID(), "rejected").Inc()
		return err
	}
	metrics.RecordForward(f.ID(), time.Since(start), err)
	return err
}
