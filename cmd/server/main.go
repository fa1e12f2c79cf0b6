// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

// Package main is the entry point for the Dosentrack server.
//
// Dosentrack broadcasts lecturer positions to approved student
// subscribers in real time over WebSockets, with geofence-based
// privacy masking, throttled persistence of the latest position, and a
// day-bucketed movement history.
//
// Startup order:
//
//  1. Configuration: koanf v2 layering defaults, config.yaml, and
//     DOSENTRACK_* environment variables
//  2. Logging: zerolog, console or JSON format
//  3. Storage: SQLite with the account, permission, location, and
//     history tables
//  4. Engine: geofence classifier, presence registry, room manager,
//     history policy, and the broadcast pipeline
//  5. Supervision: suture tree running the WebSocket hub and the HTTP
//     server
//
// The server shuts down gracefully on SIGINT and SIGTERM: the
// supervisor stops both layers, then in-flight background store writes
// are drained.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dosentrack/dosentrack/internal/api"
	"github.com/dosentrack/dosentrack/internal/auth"
	"github.com/dosentrack/dosentrack/internal/config"
	"github.com/dosentrack/dosentrack/internal/geofence"
	"github.com/dosentrack/dosentrack/internal/history"
	"github.com/dosentrack/dosentrack/internal/logging"
	"github.com/dosentrack/dosentrack/internal/metrics"
	"github.com/dosentrack/dosentrack/internal/models"
	"github.com/dosentrack/dosentrack/internal/pipeline"
	"github.com/dosentrack/dosentrack/internal/presence"
	"github.com/dosentrack/dosentrack/internal/rooms"
	"github.com/dosentrack/dosentrack/internal/store"
	"github.com/dosentrack/dosentrack/internal/supervisor"
	"github.com/dosentrack/dosentrack/internal/supervisor/services"
	"github.com/dosentrack/dosentrack/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Msg("starting dosentrack")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage.
	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to open database")
	}
	defer func() { _ = db.Close() }()

	accounts := store.NewAccountStore(db)
	permissions := store.NewPermissionStore(db)
	locations := store.NewLocationStore(db)
	historyStore := store.NewHistoryStore(db)

	// Authentication.
	tokens, err := auth.NewJWTManager(cfg.Security.JWTSecret, cfg.Security.SessionTimeout)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize JWT manager")
	}
	authenticator := auth.NewConnectionAuthenticator(tokens, accounts)

	// Engine.
	zones := make([]geofence.Zone, 0, len(cfg.Geofence.Zones))
	for _, z := range cfg.Geofence.Zones {
		zones = append(zones, geofence.Zone{
			Name:      z.Name,
			Latitude:  z.Latitude,
			Longitude: z.Longitude,
			RadiusKm:  z.RadiusKm,
		})
	}
	geo := geofence.NewEngine(zones, cfg.Geofence.MaskedLatitude, cfg.Geofence.MaskedLongitude, cfg.Geofence.MaskedZoneName)
	logging.Info().Int("zones", len(zones)).Msg("geofence engine configured")

	registry := presence.NewRegistry()
	roomMgr := rooms.NewManager(permissions, accounts)
	historian := history.NewLogger(historyStore, cfg.Engine.HistoryInterval)

	pipe := pipeline.New(geo, roomMgr, historian, locations, pipeline.Config{
		PersistInterval: cfg.Engine.PersistInterval,
	})

	hub := websocket.NewHub(registry, roomMgr)
	wsRouter := websocket.NewRouter(pipe, roomMgr, registry, locations, geo)

	// A revoked permission evicts the student's live subscriptions.
	permissions.OnRevoke(func(studentID, lecturerID string) {
		evicted := roomMgr.Evict(lecturerID, studentID)
		for _, sub := range evicted {
			metrics.RoomEvictions.Inc()
			sub.Deliver(models.EventError, models.WireError{Message: "tracking permission revoked"})
		}
		if len(evicted) > 0 {
			logging.Info().
				Str("student_id", studentID).
				Str("dosen_id", lecturerID).
				Int("connections", len(evicted)).
				Msg("evicted subscriber after permission revocation")
		}
	})

	// HTTP surface.
	handler := api.NewHandler(api.HandlerDeps{
		Config:        cfg,
		DB:            db,
		Accounts:      accounts,
		Permissions:   permissions,
		Locations:     locations,
		History:       historyStore,
		Hub:           hub,
		WSRouter:      wsRouter,
		Authenticator: authenticator,
		Tokens:        tokens,
	})
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handler).Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Supervision.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddRealtimeService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("service failed to stop within timeout")
	}

	// Drain in-flight location and history writes.
	pipe.Wait()

	logging.Info().Msg("dosentrack stopped gracefully")
}
