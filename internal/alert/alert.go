// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

// Package alert emails device owners when a reading is abnormally high.
package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/geigerhub/internal/database"
	"github.com/tomtom215/geigerhub/internal/logging"
	"github.com/tomtom215/geigerhub/internal/mail"
	"github.com/tomtom215/geigerhub/internal/metrics"
	"github.com/tomtom215/geigerhub/internal/models"
)

// DefaultCooldown is the minimum spacing between two alerts of a device.
const DefaultCooldown = 24 * time.Hour

const alertField = "cpm"

// Store is the storage the evaluator needs. *database.DB satisfies it.
type Store interface {
	DeviceStats(ctx context.Context, field, deviceID string, sampleSize int) (*models.DeviceStats, error)
	SetDeviceLastAlert(ctx context.Context, deviceID string, at time.Time) error
}

// Evaluator decides whether a new record warrants an alert.
type Evaluator struct {
	store    Store
	sender   mail.Sender
	cooldown time.Duration
	now      func() time.Time
}

// NewEvaluator creates an evaluator. A non-positive cooldown uses DefaultCooldown.
func NewEvaluator(store Store, sender mail.Sender, cooldown time.Duration) *Evaluator {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Evaluator{store: store, sender: sender, cooldown: cooldown, now: time.Now}
}

// Check alerts the owner when rec's cpm exceeds the device's historical
// mean plus one population standard deviation. Only high readings alert.
// The device's last-alert time moves only after the mail went out, so a
// failed delivery is retried on the next qualifying record.
func (e *Evaluator) Check(ctx context.Context, dev *models.Device, owner *models.User, rec *models.Record) (bool, error) {
	if reason := skipReason(dev, owner, rec); reason != "" {
		metrics.AlertChecks.WithLabelValues("skipped_" + reason).Inc()
		return false, nil
	}

	now := e.now()
	if now.Sub(dev.LastEmailAlert) < e.cooldown {
		metrics.AlertChecks.WithLabelValues("cooldown").Inc()
		return false, nil
	}

	stats, err := e.store.DeviceStats(ctx, alertField, dev.ID, 0)
	if errors.Is(err, database.ErrNoData) {
		metrics.AlertChecks.WithLabelValues("no_history").Inc()
		return false, nil
	}
	if err != nil {
		metrics.AlertChecks.WithLabelValues("error").Inc()
		return false, fmt.Errorf("device stats: %w", err)
	}

	value := *rec.CPM
	if value <= stats.Avg+stats.StdDev {
		metrics.AlertChecks.WithLabelValues("normal").Inc()
		return false, nil
	}

	msg, err := compose(dev, owner, value, stats)
	if err != nil {
		return false, err
	}
	if err := e.sender.Send(ctx, msg); err != nil {
		metrics.AlertChecks.WithLabelValues("send_failed").Inc()
		return false, fmt.Errorf("send alert: %w", err)
	}

	if err := e.store.SetDeviceLastAlert(ctx, dev.ID, now); err != nil {
		return true, fmt.Errorf("record alert time: %w", err)
	}
	dev.LastEmailAlert = now.UTC()

	metrics.AlertChecks.WithLabelValues("alerted").Inc()
	logging.Info().
		Str("device", dev.ID).
		Float64("cpm", value).
		Float64("avg", stats.Avg).
		Float64("stddev", stats.StdDev).
		Msg("Sent abnormal reading alert")
	return true, nil
}

func skipReason(dev *models.Device, owner *models.User, rec *models.Record) string {
	switch {
	case !dev.AlertingEnabled():
		return "disabled"
	case dev.Disabled:
		return "device_disabled"
	case owner == nil || owner.Email == "" || !owner.Alertable:
		return "owner"
	case rec.CPM == nil:
		return "no_cpm"
	}
	return ""
}

func compose(dev *models.Device, owner *models.User, value float64, stats *models.DeviceStats) (mail.Message, error) {
	devJSON, err := json.MarshalIndent(dev.Public(), "", "  ")
	if err != nil {
		return mail.Message{}, fmt.Errorf("encode device: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "An abnormal reading was logged by your device %q.\n\n", dev.Name)
	fmt.Fprintf(&b, "Field: %s\n", strings.ToUpper(alertField))
	fmt.Fprintf(&b, "Value: %g\n", value)
	fmt.Fprintf(&b, "Average: %g (standard deviation %g over %d records)\n\n", stats.Avg, stats.StdDev, stats.SampleSize)
	b.WriteString("Device:\n")
	b.Write(devJSON)
	b.WriteString("\n")

	return mail.Message{
		To:      owner.Email,
		Subject: "Geigerhub alert for device " + dev.Name,
		Body:    b.String(),
	}, nil
}
