// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/geigerhub/internal/auth"
	"github.com/tomtom215/geigerhub/internal/calendar"
	"github.com/tomtom215/geigerhub/internal/codec"
	"github.com/tomtom215/geigerhub/internal/config"
	"github.com/tomtom215/geigerhub/internal/database"
	"github.com/tomtom215/geigerhub/internal/fanout"
	"github.com/tomtom215/geigerhub/internal/livepush"
	"github.com/tomtom215/geigerhub/internal/logging"
	"github.com/tomtom215/geigerhub/internal/models"
	"github.com/tomtom215/geigerhub/internal/proxy"
)

// RecordInserter runs the fan-out pipeline for one record.
// *fanout.Orchestrator satisfies it.
type RecordInserter interface {
	InsertRecord(ctx context.Context, rec *models.Record, dev *models.Device, owner *models.User, opts fanout.Options) error
}

// Dependencies groups everything the handlers call into.
type Dependencies struct {
	DB       *database.DB
	Fanout   RecordInserter
	Registry *livepush.Registry
	Feed     *livepush.DeviceFeed
	Calendar *calendar.Aggregator
	Proxies  *proxy.Dispatcher
	Tokens   auth.Validator
	Config   *config.Config
}

// Handler serves ingestion and the device API.
type Handler struct {
	db        *database.DB
	resolver  *codec.Resolver
	fanout    RecordInserter
	registry  *livepush.Registry
	feed      *livepush.DeviceFeed
	calendar  *calendar.Aggregator
	proxies   *proxy.Dispatcher
	tokens    auth.Validator
	config    *config.Config
	startTime time.Time

	// now is replaced in tests.
	now func() time.Time
}

// NewHandler creates a handler.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		db:        deps.DB,
		resolver:  codec.NewResolver(deps.DB),
		fanout:    deps.Fanout,
		registry:  deps.Registry,
		feed:      deps.Feed,
		calendar:  deps.Calendar,
		proxies:   deps.Proxies,
		tokens:    deps.Tokens,
		config:    deps.Config,
		startTime: time.Now(),
		now:       time.Now,
	}
}

func (h *Handler) stampOptions() codec.StampOptions {
	return codec.StampOptions{
		LogIP:              h.config.Geiger.LogIP,
		BehindReverseProxy: h.config.Geiger.BehindReverseProxy,
		Now:                h.now,
	}
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Browsers always send Origin on websocket upgrades.
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	for _, allowedOrigin := range h.config.Security.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
