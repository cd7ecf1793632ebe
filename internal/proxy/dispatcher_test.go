// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package proxy

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/geigerhub/internal/config"
	"github.com/tomtom215/geigerhub/internal/models"
)

type fakeForwarder struct {
	id    string
	err   error
	calls atomic.Int32

	mu   sync.Mutex
	seen []models.ProxySettings
}

func (f *fakeForwarder) ID() string { return f.id }

func (f *fakeForwarder) ValidateSettings(_ *models.Device, raw models.ProxySettings) error {
	if _, ok := raw["bad"]; ok {
		return errors.New("bad settings")
	}
	return nil
}

func (f *fakeForwarder) Forward(_ context.Context, _ *models.Record, _ *models.Device, s models.ProxySettings) error {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, s)
	f.mu.Unlock()
	return f.err
}

func testProxyConfig() *config.ProxyConfig {
	return &config.ProxyConfig{
		Timeout:            time.Second,
		BreakerMaxRequests: 1,
		BreakerInterval:    time.Minute,
		BreakerTimeout:     time.Minute,
	}
}

func TestDispatchInvokesConfiguredForwarders(t *testing.T) {
	a := &fakeForwarder{id: "a"}
	b := &fakeForwarder{id: "b", err: errors.New("mirror down")}
	c := &fakeForwarder{id: "c"}
	d := NewDispatcher(testProxyConfig(), a, b, c)

	dev := models.NewDevice("dev-1", "roof", 1, "u")
	dev.ProxiesSettings = map[string]models.ProxySettings{
		"a":       {"k": "v"},
		"b":       {},
		"missing": {},
	}

	err := d.Dispatch(context.Background(), dev, &models.Record{CPM: models.Float(1)})
	if err == nil || !strings.Contains(err.Error(), "mirror down") {
		t.Fatalf("err = %v, want joined failure of b", err)
	}
	if a.calls.Load() != 1 || b.calls.Load() != 1 {
		t.Errorf("calls a=%d b=%d, want 1 each", a.calls.Load(), b.calls.Load())
	}
	if c.calls.Load() != 0 {
		t.Error("unconfigured forwarder was invoked")
	}
	if a.seen[0]["k"] != "v" {
		t.Errorf("settings not passed through: %v", a.seen[0])
	}
}

func TestDispatchNoForwarders(t *testing.T) {
	a := &fakeForwarder{id: "a"}
	d := NewDispatcher(testProxyConfig(), a)

	if err := d.Dispatch(context.Background(), models.NewDevice("d", "n", 1, "u"), &models.Record{}); err != nil {
		t.Errorf("err = %v", err)
	}
	if a.calls.Load() != 0 {
		t.Error("forwarder invoked for a device without mapping")
	}
}

func TestDispatchBreakerOpens(t *testing.T) {
	f := &fakeForwarder{id: "flaky", err: errors.New("timeout")}
	d := NewDispatcher(testProxyConfig(), f)

	dev := models.NewDevice("d", "n", 1, "u")
	dev.ProxiesSettings = map[string]models.ProxySettings{"flaky": {}}

	for i := 0; i < 10; i++ {
		_ = d.Dispatch(context.Background(), dev, &models.Record{})
	}
	err := d.Dispatch(context.Background(), dev, &models.Record{})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want open breaker", err)
	}
	if f.calls.Load() != 10 {
		t.Errorf("calls = %d, want 10", f.calls.Load())
	}
}

func TestDispatchBreakerIsPerDevice(t *testing.T) {
	f := &deviceFailingForwarder{fakeForwarder: fakeForwarder{id: "radmon"}, failing: "bad"}
	d := NewDispatcher(testProxyConfig(), f)

	bad := models.NewDevice("bad", "n", 1, "u")
	bad.ProxiesSettings = map[string]models.ProxySettings{"radmon": {}}
	good := models.NewDevice("good", "n", 2, "u")
	good.ProxiesSettings = map[string]models.ProxySettings{"radmon": {}}

	for i := 0; i < 10; i++ {
		_ = d.Dispatch(context.Background(), bad, &models.Record{})
	}
	if err := d.Dispatch(context.Background(), bad, &models.Record{}); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("bad device: err = %v, want open breaker", err)
	}

	if err := d.Dispatch(context.Background(), good, &models.Record{}); err != nil {
		t.Fatalf("good device: err = %v", err)
	}
	if f.calls.Load() != 11 {
		t.Errorf("calls = %d, want 11", f.calls.Load())
	}
}

// deviceFailingForwarder fails only for one device.
type deviceFailingForwarder struct {
	fakeForwarder
	failing string
}

func (f *deviceFailingForwarder) Forward(ctx context.Context, rec *models.Record, dev *models.Device, s models.ProxySettings) error {
	_ = f.fakeForwarder.Forward(ctx, rec, dev, s)
	if dev.ID == f.failing {
		return errors.New("bad credentials")
	}
	return nil
}

func TestDispatchRateLimitHonorsContext(t *testing.T) {
	cfg := testProxyConfig()
	cfg.RatePerSecond = 0.001
	cfg.Burst = 1
	f := &fakeForwarder{id: "slow"}
	d := NewDispatcher(cfg, f)

	dev := models.NewDevice("d", "n", 1, "u")
	dev.ProxiesSettings = map[string]models.ProxySettings{"slow": {}}

	if err := d.Dispatch(context.Background(), dev, &models.Record{}); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := d.Dispatch(ctx, dev, &models.Record{}); err == nil {
		t.Fatal("expected rate limit error")
	}
	if f.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", f.calls.Load())
	}
}

func TestDispatcherValidate(t *testing.T) {
	d := NewDispatcher(testProxyConfig(), &fakeForwarder{id: "a"})
	dev := models.NewDevice("d", "n", 1, "u")

	if err := d.Validate(dev, map[string]models.ProxySettings{"a": {}}); err != nil {
		t.Errorf("valid: %v", err)
	}
	if err := d.Validate(dev, map[string]models.ProxySettings{"zzz": {}}); !errors.Is(err, ErrUnknownForwarder) {
		t.Errorf("unknown: err = %v", err)
	}
	if err := d.Validate(dev, map[string]models.ProxySettings{"a": {"bad": 1}}); err == nil {
		t.Error("invalid settings accepted")
	}
}

func TestDispatcherIDs(t *testing.T) {
	d := NewDispatcher(testProxyConfig(), Forwarders(nil, "", DefaultEndpoints())...)
	want := []string{GmcmapID, RadmonID, SafecastID, URadMonitorID}
	if got := d.IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs = %v, want %v", got, want)
	}
}
