// PlExport - Plex Library Export Tool
// Copyright 2026 PlExport contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plexport/plexport

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plexport/plexport/internal/config"
	"github.com/plexport/plexport/internal/middleware"
)

// Router wires handlers and middleware into the Chi route tree.
type Router struct {
	handler *Handler
	cfg     *config.Config
}

// NewRouter creates a router for the given handler set.
func NewRouter(handler *Handler, cfg *config.Config) *Router {
	return &Router{handler: handler, cfg: cfg}
}

// Setup builds the full route tree.
//
// Auth endpoints carry a stricter rate budget than the catalog
// endpoints: PIN issuance and checking are the brute-forceable surface.
// Catalog and export routes sit behind the session gate.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()
	rl := router.cfg.RateLimit

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   router.cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/healthz", router.handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Use(rateLimit(rl.AuthRequests, rl.AuthWindow, rl.Disabled))
		r.Use(middleware.PrometheusMetrics)

		r.Post("/pin", router.handler.CreatePIN)
		r.Post("/check", router.handler.CheckPIN)
		r.Post("/logout", router.handler.Logout)
		r.Get("/session", router.handler.Session)
	})

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(rl.Requests, rl.Window, rl.Disabled))
		r.Use(middleware.PrometheusMetrics)
		r.Use(router.handler.gate.Middleware)

		r.Get("/libraries", router.handler.Libraries)
		r.Get("/collections", router.handler.Collections)
		r.Get("/media", router.handler.Media)
		r.Post("/export", router.handler.Export)
	})

	return r
}
