// PlExport - Plex Library Export Tool
// Copyright 2026 PlExport contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plexport/plexport

// Command server runs the PlExport HTTP server: PIN-based Plex
// authentication, library browsing against the user's primary media
// server and CSV/JSON export of library listings.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/plexport/plexport/internal/api"
	"github.com/plexport/plexport/internal/auth"
	"github.com/plexport/plexport/internal/config"
	"github.com/plexport/plexport/internal/logging"
	"github.com/plexport/plexport/internal/plex"
	"github.com/plexport/plexport/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("listen", cfg.ListenAddr()).
		Str("plex_api", cfg.Plex.APIURL).
		Str("client_id", cfg.Plex.ClientIdentifier).
		Msg("Starting PlExport")

	codec, err := session.NewCodec(&cfg.Session)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize session codec")
	}

	// Circuit breaker guards the identity endpoints; library traffic to
	// the user's own server bypasses it.
	client := plex.NewBreakerClient(plex.NewClient(&cfg.Plex))

	flow := auth.NewFlow(client, codec)
	gate := auth.NewGate(codec)
	handler := api.NewHandler(flow, gate, client, cfg)
	router := api.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("HTTP server failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown failed")
	}

	logging.Info().Msg("Server stopped")
}
