// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/tomtom215/geigerhub/internal/logging"
)

type contextKey string

// ClaimsContextKey holds *Claims for authenticated requests.
const ClaimsContextKey contextKey = "claims"

// Validator is satisfied by *JWTManager.
type Validator interface {
	ValidateToken(token string) (*Claims, error)
}

// Middleware attaches validated claims to request contexts.
type Middleware struct {
	validator Validator
}

// NewMiddleware creates the middleware.
func NewMiddleware(v Validator) *Middleware {
	return &Middleware{validator: v}
}

// Optional attaches claims when a valid bearer token is present and lets
// anonymous requests through. An invalid token is rejected.
func (m *Middleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := m.validator.ValidateToken(token)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("Rejected bearer token")
			http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// Required rejects requests without valid claims.
func (m *Middleware) Required(next http.Handler) http.Handler {
	return m.Optional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ClaimsFromContext(r.Context()) == nil {
			http.Error(w, "Unauthorized: authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// SubprotocolToken extracts the credential sent as a websocket
// subprotocol. Browsers cannot set headers on websocket upgrades.
func SubprotocolToken(r *http.Request) string {
	raw := r.Header.Get("Sec-WebSocket-Protocol")
	first, _, _ := strings.Cut(raw, ",")
	return strings.TrimSpace(first)
}

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, c)
}

// ClaimsFromContext returns the request's claims or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(ClaimsContextKey).(*Claims)
	return c
}

// UserIDFromContext returns the authenticated user id or "".
func UserIDFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.UserID()
	}
	return ""
}
