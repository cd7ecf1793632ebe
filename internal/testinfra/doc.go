// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

//go:build integration

// Package testinfra provides test infrastructure for integration testing with containers.
//
// Tests using it carry the integration build tag and skip when Docker is
// not reachable:
//
//	func TestRedisCache(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    redis, err := testinfra.NewRedisContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, redis)
//
//	    client := goredis.NewClient(&goredis.Options{Addr: redis.Addr})
//	    // ...
//	}
package testinfra
