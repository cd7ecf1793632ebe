// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package models

// IntentName enumerates the events delivered to live sessions.
type IntentName string

const (
	// IntentHandshakeComplete is sent to a session as soon as it is registered.
	IntentHandshakeComplete IntentName = "HANDSHAKE_COMPLETE"
	// IntentLog2Record announces a record logged with the named-field form.
	IntentLog2Record IntentName = "LOG2_RECORD"
	// IntentLogClassicRecord announces a record logged with the compact form.
	IntentLogClassicRecord IntentName = "LOG_CLASSIC_RECORD"
)

// Intent is the envelope published on an identity's live channel.
type Intent struct {
	Name        IntentName             `json:"name"`
	Destination string                 `json:"destination,omitempty"`
	Extras      map[string]interface{} `json:"extras"`
}

// NewIntent returns an intent with an empty, non-nil extras map.
func NewIntent(name IntentName, destination string) Intent {
	return Intent{Name: name, Destination: destination, Extras: map[string]interface{}{}}
}
