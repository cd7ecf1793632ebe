// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/goccy/go-json"

	"github.com/tomtom215/geigerhub/internal/auth"
	"github.com/tomtom215/geigerhub/internal/calendar"
	"github.com/tomtom215/geigerhub/internal/config"
	"github.com/tomtom215/geigerhub/internal/database"
	"github.com/tomtom215/geigerhub/internal/fanout"
	"github.com/tomtom215/geigerhub/internal/livepush"
	"github.com/tomtom215/geigerhub/internal/models"
	"github.com/tomtom215/geigerhub/internal/proxy"
)

const (
	testUserCode   int64 = 4242
	testDeviceCode int64 = 777
	testOtherCode  int64 = 1313
)

// testEnv is a full stack over in-memory DuckDB and Badger served by an
// httptest server.
type testEnv struct {
	t        *testing.T
	cfg      *config.Config
	db       *database.DB
	jwt      *auth.JWTManager
	registry *livepush.Registry
	fanout   *fanout.Orchestrator
	calendar *calendar.Aggregator
	server   *httptest.Server

	user   *models.User
	other  *models.User
	device *models.Device
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{SessionLimit: 2},
		Geiger: config.GeigerConfig{
			DeferredTimeout: 5 * time.Second,
			TimelineLimit:   1000,
			StatsSampleSize: 500,
		},
		Calendar: config.CalendarConfig{
			Backend:   calendar.BackendBadger,
			InMemory:  true,
			KeyPrefix: "calendar:",
		},
		Proxy: config.ProxyConfig{
			Timeout:   time.Second,
			UserAgent: "geigerhub-test",
		},
		Security: config.SecurityConfig{
			JWTSecret:   "test-secret-with-at-least-32-characters",
			TokenTTL:    time.Hour,
			CORSOrigins: []string{"*"},
		},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithConfig(t, testConfig())
}

func newTestEnvWithConfig(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()

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

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	cache, err := calendar.OpenBadgerCache(&cfg.Calendar)
	if err != nil {
		t.Fatalf("OpenBadgerCache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	registry := livepush.NewRegistry(cfg.Server.SessionLimit)
	t.Cleanup(registry.CloseAll)
	feed := livepush.NewDeviceFeed(watermill.NopLogger{})
	t.Cleanup(func() { _ = feed.Close() })

	orchestrator := fanout.New(fanout.Dependencies{
		Store: db,
		Live:  registry,
		Feed:  feed,
	}, cfg.Geiger.DeferredTimeout)
	t.Cleanup(orchestrator.Wait)

	aggregator := calendar.New(cache, db, 5*time.Second)
	t.Cleanup(aggregator.Wait)

	client := &http.Client{Timeout: cfg.Proxy.Timeout}
	dispatcher := proxy.NewDispatcher(&cfg.Proxy, proxy.Forwarders(client, cfg.Proxy.UserAgent, proxy.DefaultEndpoints())...)

	handler := NewHandler(Dependencies{
		DB:       db,
		Fanout:   orchestrator,
		Registry: registry,
		Feed:     feed,
		Calendar: aggregator,
		Proxies:  dispatcher,
		Tokens:   jwtManager,
		Config:   cfg,
	})
	router := NewRouter(handler, auth.NewMiddleware(jwtManager), ChiMiddlewareConfigFrom(cfg))
	server := httptest.NewServer(router.SetupChi())
	t.Cleanup(server.Close)

	env := &testEnv{
		t:        t,
		cfg:      cfg,
		db:       db,
		jwt:      jwtManager,
		registry: registry,
		fanout:   orchestrator,
		calendar: aggregator,
		server:   server,
	}
	env.seed()
	return env
}

func (e *testEnv) seed() {
	ctx := context.Background()
	e.user = &models.User{ID: "user-1", Username: "alice", Email: "alice@example.org", GmcID: testUserCode, DeviceLimit: 2}
	e.other = &models.User{ID: "user-2", Username: "bob", GmcID: testOtherCode, DeviceLimit: 1}
	for _, u := range []*models.User{e.user, e.other} {
		if err := e.db.CreateUser(ctx, u); err != nil {
			e.t.Fatalf("CreateUser: %v", err)
		}
	}

	e.device = models.NewDevice("dev-1", "Backyard", testDeviceCode, e.user.ID)
	e.device.Location = models.Location{2.35, 48.85}
	if err := e.db.CreateDevice(ctx, e.device); err != nil {
		e.t.Fatalf("CreateDevice: %v", err)
	}
}

func (e *testEnv) token(u *models.User) string {
	e.t.Helper()
	tok, err := e.jwt.GenerateToken(u.ID, u.Username)
	if err != nil {
		e.t.Fatalf("GenerateToken: %v", err)
	}
	return tok
}

// do sends a request and returns status, headers and body.
func (e *testEnv) do(method, path, body, token string, header http.Header) (int, http.Header, string) {
	e.t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, rd)
	if err != nil {
		e.t.Fatalf("NewRequest: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		e.t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, resp.Header, string(raw)
}

func (e *testEnv) get(path, token string) (int, string) {
	e.t.Helper()
	status, _, body := e.do(http.MethodGet, path, "", token, nil)
	return status, body
}

func (e *testEnv) records() []models.Record {
	e.t.Helper()
	e.fanout.Wait()
	recs, err := e.db.ListDeviceRecords(context.Background(), e.device.ID, database.RecordQuery{})
	if err != nil {
		e.t.Fatalf("ListDeviceRecords: %v", err)
	}
	return recs
}

// envelope decodes an API response, leaving data raw for the caller.
type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func decodeEnvelope(t *testing.T, body string) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		t.Fatalf("decode envelope %q: %v", body, err)
	}
	return env
}
