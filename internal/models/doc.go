// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

/*
Package models defines the data structures shared across Geigerhub.

Key types:

  - Record: one telemetry sample from a field device. Stat fields are
    optional pointers; a nil field is absent and never serialized.
  - Device: a field device with its identity code, owner, alert settings and
    forwarder settings.
  - User: the owner of devices, identified by an internal ID and an
    identity code used by hardware.
  - DeviceCalendar: cached per-day averages for a device.
  - DeviceStats: aggregate over one stat field, computed on demand.
  - Intent: the envelope delivered to live sessions.
  - APIResponse: the JSON envelope returned by the /api/v1 endpoints.

The stat field table (StatFields) is the single list of numeric channels.
Codecs, storage queries and forwarders iterate it rather than naming fields
by hand.
*/
package models
