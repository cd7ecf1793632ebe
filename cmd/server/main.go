// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/tomtom215/geigerhub/internal/alert"
	"github.com/tomtom215/geigerhub/internal/api"
	"github.com/tomtom215/geigerhub/internal/auth"
	"github.com/tomtom215/geigerhub/internal/calendar"
	"github.com/tomtom215/geigerhub/internal/config"
	"github.com/tomtom215/geigerhub/internal/database"
	"github.com/tomtom215/geigerhub/internal/fanout"
	"github.com/tomtom215/geigerhub/internal/livepush"
	"github.com/tomtom215/geigerhub/internal/logging"
	"github.com/tomtom215/geigerhub/internal/mail"
	"github.com/tomtom215/geigerhub/internal/proxy"
	"github.com/tomtom215/geigerhub/internal/supervisor"
	"github.com/tomtom215/geigerhub/internal/supervisor/services"
)

// calendarGCInterval is how often the embedded calendar cache reclaims space.
const calendarGCInterval = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	logging.Info().
		Str("db_driver", cfg.Database.Driver).
		Str("calendar_backend", cfg.Calendar.Backend).
		Bool("mail_enabled", cfg.Mail.Enabled).
		Bool("log_ip", cfg.Geiger.LogIP).
		Msg("Starting Geigerhub")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Geigerhub stopped with error")
	}
	logging.Info().Msg("Geigerhub stopped gracefully")
}

//nolint:gocyclo // sequential wiring
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Str("driver", db.Driver()).Msg("Database initialized")

	cache, err := calendar.OpenCache(ctx, &cfg.Calendar)
	if err != nil {
		return err
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing calendar cache")
		}
	}()

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		return err
	}

	slogLogger := logging.NewSlogLogger()

	registry := livepush.NewRegistry(cfg.Server.SessionLimit)
	feed := livepush.NewDeviceFeed(watermill.NewSlogLogger(slogLogger))

	client := &http.Client{Timeout: cfg.Proxy.Timeout}
	dispatcher := proxy.NewDispatcher(&cfg.Proxy, proxy.Forwarders(client, cfg.Proxy.UserAgent, proxy.DefaultEndpoints())...)

	deps := fanout.Dependencies{
		Store:   db,
		Proxies: dispatcher,
		Live:    registry,
		Feed:    feed,
	}
	if cfg.Mail.Enabled {
		deps.Alerts = alert.NewEvaluator(db, mail.NewSMTPSender(&cfg.Mail), cfg.Geiger.AlertCooldown)
	} else {
		logging.Info().Msg("Alert emails disabled (SMTP_ENABLED=false)")
	}
	orchestrator := fanout.New(deps, cfg.Geiger.DeferredTimeout)
	aggregator := calendar.New(cache, db, cfg.Geiger.DeferredTimeout)

	handler := api.NewHandler(api.Dependencies{
		DB:       db,
		Fanout:   orchestrator,
		Registry: registry,
		Feed:     feed,
		Calendar: aggregator,
		Proxies:  dispatcher,
		Tokens:   jwtManager,
		Config:   cfg,
	})
	router := api.NewRouter(handler, auth.NewMiddleware(jwtManager), api.ChiMiddlewareConfigFrom(cfg))

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout + cfg.Geiger.DeferredTimeout,
	})
	if err != nil {
		return err
	}

	tree.AddDataService(services.NewDrainService("fanout-drain", orchestrator, cfg.Geiger.DeferredTimeout))
	tree.AddDataService(services.NewDrainService("calendar-drain", aggregator, cfg.Geiger.DeferredTimeout))
	if badgerCache, ok := cache.(*calendar.BadgerCache); ok {
		tree.AddDataService(services.NewCacheGCService(badgerCache, calendarGCInterval))
	}
	tree.AddMessagingService(services.NewLivePushService(registry, feed))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", server.Addr).Strs("proxies", dispatcher.IDs()).Msg("Listening")

	err = <-tree.ServeBackground(ctx)

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
