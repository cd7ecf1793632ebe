// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

// Package services adapts Geigerhub components to suture.Service.
//
// Each wrapper depends on a small interface rather than the concrete
// component, so the wrappers can be tested with stubs:
//
//	HTTPServerService  *http.Server
//	DrainService       *fanout.Orchestrator, *calendar.Aggregator
//	LivePushService    *livepush.Registry and *livepush.DeviceFeed
//	CacheGCService     *calendar.BadgerCache
package services
