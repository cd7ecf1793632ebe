// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

/*
Package api provides the HTTP layer of Geigerhub.

It serves two audiences with different conventions.

1. Device Logging Endpoints (no authentication, rate limited per client):
  - /log2, /log2.asp: named-field form (AID, GID, CPM, ACPM, uSV, ...)
  - /log, /log.asp: compact form (?ID=user+device+cpm[+acpm[+usv]])
  - /radmon.php: radmon.org compatible submit
  - /measurements.json: Safecast compatible POST
  - /api/v1/upload/exp/*: uRADMonitor compatible POST with path-encoded readings

These answer with the status lines counter firmware understands ("OK.ERR0",
"Invalid user ID.ERR1", ...) as text/plain, or as a JSON status object when
the client accepts application/json. Extras travel in the X-GMC-Extras header.

2. Device API (/api/v1, JSON envelope, JWT bearer tokens):
  - /device: create (authenticated, bounded by the user's device limit)
  - /device/{id}: read, update and delete (owner only for writes)
  - /device/{id}/timeline, /stats/{field}, /calendar, /export/csv
  - /device/{id}/live and /ws: websocket feeds
  - /proxies: forwarder ids accepted in proxiesSettings

Websocket clients may send their token as the first Sec-WebSocket-Protocol
value; the server echoes it back to complete the handshake.

Operational endpoints /health, /health/live and /metrics sit at the root.
*/
package api
