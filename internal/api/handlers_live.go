// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/geigerhub/internal/auth"
	"github.com/tomtom215/geigerhub/internal/livepush"
	"github.com/tomtom215/geigerhub/internal/logging"
)

const feedWriteWait = 10 * time.Second

var errBadLiveToken = errors.New("invalid live token")

// liveIdentity finds the caller of a websocket upgrade. A bearer token
// already checked by the auth middleware wins; otherwise the first
// subprotocol is taken as the token, since browsers cannot set headers
// on upgrades. The returned subprotocol must be echoed in the handshake.
func (h *Handler) liveIdentity(r *http.Request) (identity, subprotocol string, err error) {
	if uid := auth.UserIDFromContext(r.Context()); uid != "" {
		return uid, "", nil
	}
	token := auth.SubprotocolToken(r)
	if token == "" || h.tokens == nil {
		return "", "", nil
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		return "", "", errBadLiveToken
	}
	return claims.UserID(), token, nil
}

func (h *Handler) upgrade(w http.ResponseWriter, r *http.Request, subprotocol string) (*websocket.Conn, error) {
	upgrader := h.getUpgrader()
	if subprotocol != "" {
		upgrader.Subprotocols = []string{subprotocol}
	}
	return upgrader.Upgrade(w, r, nil)
}

// UserLive opens the authenticated user's live channel. Every intent
// published to the user is pushed on it.
func (h *Handler) UserLive(w http.ResponseWriter, r *http.Request) {
	identity, subprotocol, err := h.liveIdentity(r)
	if err != nil || identity == "" {
		http.Error(w, "Unauthorized: authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrade(w, r, subprotocol)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Live upgrade failed")
		return
	}

	if _, err := h.registry.Connect(identity, conn); err != nil {
		if errors.Is(err, livepush.ErrSessionLimit) {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
				time.Now().Add(feedWriteWait))
		}
		_ = conn.Close()
		logging.Ctx(r.Context()).Info().Err(err).Str("identity", identity).Msg("Live session refused")
	}
}

// DeviceLive streams new records of one device. The owner receives full
// records, anyone else the public view.
func (h *Handler) DeviceLive(w http.ResponseWriter, r *http.Request) {
	identity, subprotocol, err := h.liveIdentity(r)
	if err != nil {
		http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
		return
	}
	dev, ok := h.loadDevice(w, r)
	if !ok {
		return
	}
	owner := identity != "" && identity == dev.Owner

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	// Subscribe before the handshake so no record published after the
	// client sees the connection open is missed.
	records, err := h.feed.SubscribeDevice(ctx, dev.ID, owner)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "LIVE_ERROR", "Failed to subscribe to device", err)
		return
	}

	conn, err := h.upgrade(w, r, subprotocol)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Device feed upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	// The peer never sends anything; reading only notices it leaving.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-records:
			if !ok {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(feedWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
