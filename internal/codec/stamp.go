// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package codec

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/geigerhub/internal/models"
)

// StampOptions controls client address capture.
type StampOptions struct {
	LogIP bool

	// BehindReverseProxy takes the address from X-Forwarded-For instead
	// of the socket peer.
	BehindReverseProxy bool

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Stamp sets the capture time and, when enabled, the client address.
func Stamp(rec *models.Record, r *http.Request, opts StampOptions) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	rec.Date = now().UTC()

	if !opts.LogIP || r == nil {
		return
	}
	if opts.BehindReverseProxy {
		rec.IP = forwardedFor(r)
		return
	}
	rec.IP = peerAddress(r)
}

func forwardedFor(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}

func peerAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
