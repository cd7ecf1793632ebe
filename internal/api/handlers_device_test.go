// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/geigerhub/internal/database"
	"github.com/tomtom215/geigerhub/internal/models"
)

func TestGetDeviceViews(t *testing.T) {
	env := newTestEnv(t)
	path := "/api/v1/device/" + env.device.ID

	status, body := env.get(path, "")
	if status != http.StatusOK {
		t.Fatalf("anonymous: status = %d", status)
	}
	var public map[string]interface{}
	if err := json.Unmarshal(decodeEnvelope(t, body).Data, &public); err != nil {
		t.Fatal(err)
	}
	if _, leaked := public["gmcId"]; leaked {
		t.Error("public view exposes the identity code")
	}

	status, body = env.get(path, env.token(env.user))
	if status != http.StatusOK {
		t.Fatalf("owner: status = %d", status)
	}
	var full models.Device
	if err := json.Unmarshal(decodeEnvelope(t, body).Data, &full); err != nil {
		t.Fatal(err)
	}
	if full.GmcID != testDeviceCode {
		t.Errorf("owner view gmcId = %d", full.GmcID)
	}

	if status, _ := env.get("/api/v1/device/missing", ""); status != http.StatusNotFound {
		t.Errorf("missing device: status = %d", status)
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	env := newTestEnv(t)
	if status, _ := env.get("/api/v1/device/"+env.device.ID, "not-a-token"); status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", status)
	}
}

func TestCreateDeviceEnforcesLimit(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(env.user)

	status, _, body := env.do(http.MethodPost, "/api/v1/device", `{"name":"Attic","location":[4.8,45.7]}`, token, nil)
	if status != http.StatusCreated {
		t.Fatalf("create: status = %d body = %s", status, body)
	}
	var created models.Device
	if err := json.Unmarshal(decodeEnvelope(t, body).Data, &created); err != nil {
		t.Fatal(err)
	}
	if created.Owner != env.user.ID || created.GmcID < 1 || created.GmcID > models.MaxGmcID {
		t.Errorf("unexpected device: %+v", created)
	}

	// The seeded device plus this one reach the limit of two.
	status, _, body = env.do(http.MethodPost, "/api/v1/device", `{"name":"Garage"}`, token, nil)
	if status != http.StatusForbidden {
		t.Fatalf("over limit: status = %d", status)
	}
	if env := decodeEnvelope(t, body); env.Error == nil || env.Error.Code != "DEVICE_LIMIT" {
		t.Errorf("error = %+v", env.Error)
	}

	if status, _, _ := env.do(http.MethodPost, "/api/v1/device", `{"name":"Garage"}`, "", nil); status != http.StatusUnauthorized {
		t.Errorf("anonymous create: status = %d", status)
	}
}

func TestCreateDeviceValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(env.user)

	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{}`},
		{"short location", `{"name":"x","location":[1]}`},
		{"out of range", `{"name":"x","location":[200,10]}`},
		{"unknown field", `{"name":"x","color":"red"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if status, _, body := env.do(http.MethodPost, "/api/v1/device", tt.body, token, nil); status != http.StatusBadRequest {
				t.Errorf("status = %d body = %s", status, body)
			}
		})
	}
}

func TestUpdateDevice(t *testing.T) {
	env := newTestEnv(t)
	path := "/api/v1/device/" + env.device.ID
	token := env.token(env.user)

	body := `{"name":"Roof","stdDevAlertLimit":2.5,"proxiesSettings":{"radmon":{"user":"alice","password":"s3cret"},"gmcmap":{"userId":12345678901234,"deviceId":42}}}`
	status, _, resp := env.do(http.MethodPut, path, body, token, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d body = %s", status, resp)
	}

	dev, err := env.db.GetDevice(context.Background(), env.device.ID)
	if err != nil {
		t.Fatal(err)
	}
	if dev.Name != "Roof" || dev.StdDevAlertLimit == nil || *dev.StdDevAlertLimit != 2.5 {
		t.Errorf("unexpected device: %+v", dev)
	}
	if len(dev.ProxiesSettings) != 2 {
		t.Fatalf("proxiesSettings = %v", dev.ProxiesSettings)
	}
	if got := dev.ProxiesSettings["gmcmap"]["userId"]; got != json.Number("12345678901234") {
		t.Errorf("gmcmap userId = %v (%T)", got, got)
	}

	status, _, _ = env.do(http.MethodPut, path, `{"disableAlerts":true}`, token, nil)
	if status != http.StatusOK {
		t.Fatalf("disable alerts: status = %d", status)
	}
	dev, _ = env.db.GetDevice(context.Background(), env.device.ID)
	if dev.StdDevAlertLimit != nil {
		t.Error("alert limit not cleared")
	}
}

func TestUpdateDeviceRejectsBadProxies(t *testing.T) {
	env := newTestEnv(t)
	path := "/api/v1/device/" + env.device.ID
	token := env.token(env.user)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"unknown forwarder", `{"proxiesSettings":{"nowhere":{}}}`, "UNKNOWN_PROXY"},
		{"missing key", `{"proxiesSettings":{"radmon":{"user":"alice"}}}`, "INVALID_PROXY_SETTINGS"},
		{"extra key", `{"proxiesSettings":{"radmon":{"user":"a","password":"b","x":1}}}`, "INVALID_PROXY_SETTINGS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _, body := env.do(http.MethodPut, path, tt.body, token, nil)
			if status != http.StatusBadRequest {
				t.Fatalf("status = %d", status)
			}
			if e := decodeEnvelope(t, body); e.Error == nil || e.Error.Code != tt.code {
				t.Errorf("error = %+v, want %s", e.Error, tt.code)
			}
		})
	}
}

func TestDeviceWritesRequireOwner(t *testing.T) {
	env := newTestEnv(t)
	path := "/api/v1/device/" + env.device.ID
	intruder := env.token(env.other)

	if status, _, _ := env.do(http.MethodPut, path, `{"name":"mine"}`, intruder, nil); status != http.StatusForbidden {
		t.Errorf("update by non-owner: status = %d", status)
	}
	if status, _, _ := env.do(http.MethodDelete, path, "", intruder, nil); status != http.StatusForbidden {
		t.Errorf("delete by non-owner: status = %d", status)
	}

	if status, _, _ := env.do(http.MethodDelete, path, "", env.token(env.user), nil); status != http.StatusOK {
		t.Fatalf("delete by owner: status = %d", status)
	}
	if _, err := env.db.GetDevice(context.Background(), env.device.ID); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("device still present: %v", err)
	}
}
