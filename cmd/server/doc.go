// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

/*
Command server runs Geigerhub, an ingestion server for Geiger counter
telemetry.

Devices submit readings over the GMC log protocols (/log2.asp, /log.asp)
and the radmon, Safecast and uRADMonitor upload formats. Each accepted
record is stored, checked against the device's alert threshold, forwarded
to the owner's configured mirror services and pushed to live websocket
watchers.

# Supervision

	geigerhub
	├── data-layer       fan-out drain, calendar drain, calendar cache GC
	├── messaging-layer  live push sessions and device feed
	└── api-layer        HTTP server

SIGINT and SIGTERM cancel the tree. The HTTP server drains in-flight
requests while deferred alert and forwarding work gets DEFERRED_TIMEOUT to
finish.

# Configuration

Defaults are overridden by a YAML file (CONFIG_PATH, ./config.yaml or
/etc/geigerhub/config.yaml) and then by environment variables:

	HTTP_PORT=8080
	LOG_LEVEL=info              # trace, debug, info, warn, error
	LOG_FORMAT=json             # json or console
	JWT_SECRET=<32+ chars>      # required

	DATABASE_DRIVER=duckdb      # duckdb or postgres
	DUCKDB_PATH=/data/geigerhub.duckdb
	POSTGRES_URL=postgres://...

	CALENDAR_BACKEND=badger     # badger or redis
	BADGER_PATH=/data/calendar
	REDIS_ADDR=127.0.0.1:6379

	LOG_IP=false
	BEHIND_REVERSE_PROXY=false
	INGEST_RATE_LIMIT=120       # per minute per client, 0 disables

	SMTP_ENABLED=false
	SMTP_HOST=smtp.example.org
	SMTP_FROM=alerts@example.org
*/
package main
