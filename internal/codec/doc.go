// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

/*
Package codec converts between device wire formats and models.Record.

Ingestion accepts two shapes from Geiger counter firmware:

  - Named fields: /log2?AID=1&GID=2&cpm=15&usv=0.09&lat=..&lon=..
  - Compact tuple: /log?id=1+2+15+14.5+0.09 (user code, device code, cpm, acpm, usv)

Both produce a Submission holding the identity codes and an unresolved
record. Resolver then turns the codes into the owning user and device and
Stamp sets the server capture time and, optionally, the client address.

The package also holds the outbound encodings used by mirrors and exports:
the uRADMonitor path-segment format and the CSV timeline.
*/
package codec
