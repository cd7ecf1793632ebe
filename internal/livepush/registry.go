// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package livepush

import (
	"errors"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/geigerhub/internal/logging"
	"github.com/tomtom215/geigerhub/internal/metrics"
	"github.com/tomtom215/geigerhub/internal/models"
)

// ErrSessionLimit is returned when an identity already holds the maximum
// number of sessions.
var ErrSessionLimit = errors.New("too many live sessions")

// DefaultSessionLimit applies when the configured cap is not positive.
const DefaultSessionLimit = 2

// Registry maps identities to their open sessions.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]map[*Session]struct{}
	limit    int
}

// NewRegistry creates a registry allowing limit sessions per identity.
func NewRegistry(limit int) *Registry {
	if limit <= 0 {
		limit = DefaultSessionLimit
	}
	return &Registry{
		sessions: make(map[string]map[*Session]struct{}),
		limit:    limit,
	}
}

// Connect registers conn for identity and announces it with a
// HANDSHAKE_COMPLETE intent. The caller keeps ownership of conn when
// ErrSessionLimit is returned.
func (r *Registry) Connect(identity string, conn *websocket.Conn) (*Session, error) {
	r.mu.Lock()
	set := r.sessions[identity]
	if len(set) >= r.limit {
		r.mu.Unlock()
		metrics.LiveSessionsRejected.Inc()
		return nil, ErrSessionLimit
	}
	if set == nil {
		set = make(map[*Session]struct{})
		r.sessions[identity] = set
	}
	s := newSession(identity, conn, r.remove)
	set[s] = struct{}{}
	total := len(set)
	r.mu.Unlock()

	metrics.LiveSessions.Inc()
	s.start()

	logging.Debug().Str("identity", identity).Uint64("session", s.id).Int("sessions", total).Msg("Live session opened")
	r.Publish(identity, models.NewIntent(models.IntentHandshakeComplete, identity))
	return s, nil
}

// remove drops a closed session. Registered as the session close hook.
func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	set, ok := r.sessions[s.identity]
	if ok {
		if _, present := set[s]; present {
			delete(set, s)
			metrics.LiveSessions.Dec()
		}
		if len(set) == 0 {
			delete(r.sessions, s.identity)
		}
	}
	r.mu.Unlock()

	logging.Debug().Str("identity", s.identity).Uint64("session", s.id).Msg("Live session closed")
}

// Publish delivers intent to every open session of identity. A session
// that cannot keep up is closed. No sessions is a no-op.
func (r *Registry) Publish(identity string, intent models.Intent) {
	targets := r.snapshot(identity)
	if len(targets) == 0 {
		return
	}

	payload, err := json.Marshal(intent)
	if err != nil {
		logging.Error().Err(err).Str("intent", string(intent.Name)).Msg("Failed to encode intent")
		return
	}

	for _, s := range targets {
		if !s.enqueue(payload) {
			metrics.LiveDropped.Inc()
			logging.Warn().Str("identity", identity).Uint64("session", s.id).Msg("Live session too slow, closing")
			s.Close()
		}
	}
}

// SessionCount returns the open sessions of identity.
func (r *Registry) SessionCount(identity string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions[identity])
}

// CloseAll ends every session. Used at shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	var all []*Session
	for _, set := range r.sessions {
		for s := range set {
			all = append(all, s)
		}
	}
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
	if len(all) > 0 {
		logging.Info().Int("sessions", len(all)).Msg("Closed all live sessions")
	}
}

// snapshot copies the session set in id order so publishes do not hold
// the lock while enqueueing or closing.
func (r *Registry) snapshot(identity string) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.sessions[identity]
	out := make([]*Session, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
