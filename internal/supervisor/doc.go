// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

/*
Package supervisor runs Geigerhub's long-lived services under suture v4.

	geigerhub
	├── data-layer
	│   ├── fanout-drain
	│   ├── calendar-drain
	│   └── calendar-cache-gc (Badger backend only)
	├── messaging-layer
	│   └── live-push
	└── api-layer
	    └── http-server

A service that returns an error is restarted with backoff; repeated
failures only pause its own layer. Supervisor events are logged through
sutureslog, which main bridges to zerolog with logging.NewSlogLogger.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddAPIService(services.NewHTTPServerService(server, timeout))
	return tree.Serve(ctx)

The service wrappers live in the services subpackage.
*/
package supervisor
