// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package api

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/geigerhub/internal/codec"
	"github.com/tomtom215/geigerhub/internal/models"
)

func TestLogNamedStoresRecord(t *testing.T) {
	env := newTestEnv(t)

	path := fmt.Sprintf("/log2.asp?AID=%d&GID=%d&CPM=25&ACPM=22.5&uSV=0.16&lat=48.8&lon=2.3", testUserCode, testDeviceCode)
	status, body := env.get(path, "")
	if status != http.StatusOK || body != codec.StatusOK {
		t.Fatalf("got %d %q, want 200 %q", status, body, codec.StatusOK)
	}

	recs := env.records()
	if len(recs) != 1 {
		t.Fatalf("stored %d records, want 1", len(recs))
	}
	rec := recs[0]
	if rec.CPM == nil || *rec.CPM != 25 || rec.ACPM == nil || *rec.ACPM != 22.5 {
		t.Errorf("unexpected stats: %+v", rec)
	}
	if rec.UserID != env.user.ID || rec.DeviceID != env.device.ID {
		t.Errorf("record bound to %s/%s", rec.UserID, rec.DeviceID)
	}
	if !rec.Location.Valid() || rec.Location.Lon() != 2.3 || rec.Location.Lat() != 48.8 {
		t.Errorf("location = %v, want [2.3 48.8]", rec.Location)
	}
	if rec.IP != "" {
		t.Errorf("IP logged with log_ip off: %q", rec.IP)
	}
}

func TestLogCompactStoresRecord(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(fmt.Sprintf("/log.asp?id=%d+%d+30+28", testUserCode, testDeviceCode), "")
	if status != http.StatusOK || body != codec.StatusOK {
		t.Fatalf("got %d %q", status, body)
	}
	recs := env.records()
	if len(recs) != 1 || *recs[0].CPM != 30 || *recs[0].ACPM != 28 || recs[0].USV != nil {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

func TestIngestionFailures(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		path   string
		status int
		body   string
	}{
		{"bad user code", fmt.Sprintf("/log2?AID=abc&GID=%d&CPM=1", testDeviceCode), http.StatusBadRequest, codec.StatusInvalidUser},
		{"bad device code", fmt.Sprintf("/log2?AID=%d&GID=0&CPM=1", testUserCode), http.StatusBadRequest, codec.StatusInvalidDevice},
		{"bad number", fmt.Sprintf("/log2?AID=%d&GID=%d&CPM=lots", testUserCode, testDeviceCode), http.StatusBadRequest, codec.StatusSyntax},
		{"no stats", fmt.Sprintf("/log2?AID=%d&GID=%d", testUserCode, testDeviceCode), http.StatusBadRequest, codec.StatusSyntax},
		{"unknown user", fmt.Sprintf("/log2?AID=9&GID=%d&CPM=1", testDeviceCode), http.StatusNotFound, codec.StatusInvalidUser},
		{"unknown device", fmt.Sprintf("/log2?AID=%d&GID=9&CPM=1", testUserCode), http.StatusNotFound, codec.StatusInvalidDevice},
		{"not owner", fmt.Sprintf("/log2?AID=%d&GID=%d&CPM=1", testOtherCode, testDeviceCode), http.StatusForbidden, codec.StatusDeviceNotOwned},
		{"compact too short", fmt.Sprintf("/log?id=%d+%d", testUserCode, testDeviceCode), http.StatusBadRequest, codec.StatusSyntax},
		{"compact missing", "/log", http.StatusBadRequest, codec.StatusSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.get(tt.path, "")
			if status != tt.status || body != tt.body {
				t.Errorf("got %d %q, want %d %q", status, body, tt.status, tt.body)
			}
		})
	}

	if n := len(env.records()); n != 0 {
		t.Errorf("failed submissions stored %d records", n)
	}
}

func TestIngestionJSONStatus(t *testing.T) {
	env := newTestEnv(t)

	header := http.Header{"Accept": {"application/json"}}
	status, h, body := env.do(http.MethodGet, fmt.Sprintf("/log2?AID=%d&GID=9&CPM=1", testUserCode), "", "", header)
	if status != http.StatusNotFound {
		t.Fatalf("status = %d", status)
	}
	if ct := h.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
	var got models.GmcStatus
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != http.StatusNotFound || got.Description != codec.StatusInvalidDevice {
		t.Errorf("got %+v", got)
	}
}

func TestLogIPBehindProxy(t *testing.T) {
	cfg := testConfig()
	cfg.Geiger.LogIP = true
	cfg.Geiger.BehindReverseProxy = true
	env := newTestEnvWithConfig(t, cfg)

	header := http.Header{"X-Forwarded-For": {"203.0.113.7, 10.0.0.1"}}
	status, _, _ := env.do(http.MethodGet, fmt.Sprintf("/log2?AID=%d&GID=%d&CPM=5", testUserCode, testDeviceCode), "", "", header)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if recs := env.records(); len(recs) != 1 || recs[0].IP != "203.0.113.7" {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

func TestRadmon(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(fmt.Sprintf("/radmon.php?function=submit&user=%d&password=%d&value=18&unit=CPM", testUserCode, testDeviceCode), "")
	if status != http.StatusOK || body != "OK<br>" {
		t.Fatalf("got %d %q", status, body)
	}
	if recs := env.records(); len(recs) != 1 || *recs[0].CPM != 18 {
		t.Fatalf("unexpected records: %+v", recs)
	}

	status, body = env.get(fmt.Sprintf("/radmon.php?function=submit&user=%d&password=%d&value=18&unit=uSv", testUserCode, testDeviceCode), "")
	if status != http.StatusBadRequest || body != ErrUnitNotCPM.Error() {
		t.Errorf("wrong unit: got %d %q", status, body)
	}

	status, _ = env.get(fmt.Sprintf("/radmon.php?function=submit&user=%d&password=%d&value=NaN&unit=CPM", testUserCode, testDeviceCode), "")
	if status != http.StatusBadRequest {
		t.Errorf("NaN value: status = %d", status)
	}
	if n := len(env.records()); n != 1 {
		t.Errorf("stored %d records, want 1", n)
	}
}

func TestSafecast(t *testing.T) {
	env := newTestEnv(t)

	body := fmt.Sprintf(`{"device_id":%d,"captured_at":"2024-05-01T10:00:00.000Z","longitude":2.3,"latitude":48.8,"value":31,"unit":"cpm"}`, testDeviceCode)
	status, _, resp := env.do(http.MethodPost, fmt.Sprintf("/measurements.json?api_key=%d", testUserCode), body, "", nil)
	if status != http.StatusCreated {
		t.Fatalf("status = %d body = %s", status, resp)
	}
	recs := env.records()
	if len(recs) != 1 || *recs[0].CPM != 31 || recs[0].Location.Lat() != 48.8 {
		t.Fatalf("unexpected records: %+v", recs)
	}

	bad := fmt.Sprintf(`{"device_id":%d,"captured_at":"2024-05-01T10:00:00Z","longitude":2.3,"latitude":48.8,"value":31,"unit":"usv"}`, testDeviceCode)
	if status, _, _ := env.do(http.MethodPost, fmt.Sprintf("/measurements.json?api_key=%d", testUserCode), bad, "", nil); status != http.StatusBadRequest {
		t.Errorf("wrong unit: status = %d", status)
	}
}

func TestURadMonitor(t *testing.T) {
	env := newTestEnv(t)

	header := http.Header{
		"X-User-Hash": {fmt.Sprint(testUserCode)},
		"X-Device-Id": {fmt.Sprint(testDeviceCode)},
	}
	status, _, body := env.do(http.MethodPost, "/api/v1/upload/exp/01/1714557600/07/0.5/0B/25.0", "", "", header)
	if status != http.StatusOK || body != `{"success":"ok"}` {
		t.Fatalf("got %d %q", status, body)
	}
	recs := env.records()
	if len(recs) != 1 || *recs[0].CPM != 25 || *recs[0].CO2 != 0.5 {
		t.Fatalf("unexpected records: %+v", recs)
	}

	status, _, _ = env.do(http.MethodPost, "/api/v1/upload/exp/01/1714557600/07", "", "", header)
	if status != http.StatusBadRequest {
		t.Errorf("odd segments: status = %d", status)
	}
}

func TestIngestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Geiger.IngestRateLimit = 1
	env := newTestEnvWithConfig(t, cfg)

	path := fmt.Sprintf("/log2?AID=%d&GID=%d&CPM=5", testUserCode, testDeviceCode)
	if status, _ := env.get(path, ""); status != http.StatusOK {
		t.Fatalf("first request: %d", status)
	}
	status, body := env.get(path, "")
	if status != http.StatusTooManyRequests {
		t.Fatalf("second request: %d", status)
	}
	if !strings.HasSuffix(body, ".ERR9999") {
		t.Errorf("body = %q", body)
	}
}
