// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

/*
Package livepush delivers events to connected browsers.

Two channels exist:

  - Registry holds per-user websocket sessions. Every session of a user
    receives every Intent published to that user. A user may hold at most
    a configured number of sessions at once.
  - DeviceFeed re-publishes each new record of a device to whoever watches
    that device, over an in-process watermill GoChannel. Non-owners get the
    redacted record.

State is process local. A second server instance does not see these
sessions.
*/
package livepush
