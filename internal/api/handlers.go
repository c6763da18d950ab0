// PlExport - Plex Library Export Tool
// Copyright 2026 PlExport contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plexport/plexport

// Package api provides the HTTP surface: Chi routing, request middleware
// and the boundary handlers that map typed component errors to status
// codes. Handlers never leak upstream error internals to the client.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/plexport/plexport/internal/auth"
	"github.com/plexport/plexport/internal/config"
	"github.com/plexport/plexport/internal/export"
	"github.com/plexport/plexport/internal/logging"
	"github.com/plexport/plexport/internal/models"
	"github.com/plexport/plexport/internal/plex"
	"github.com/plexport/plexport/internal/session"
	"github.com/plexport/plexport/internal/validation"
)

// Request body limits. Export bodies carry whole library listings.
const (
	maxAuthBodyBytes   = 4 << 10
	maxExportBodyBytes = 64 << 20
)

// CatalogClient is the slice of the Plex client the handlers depend on.
// *plex.Client and *plex.BreakerClient both satisfy it.
type CatalogClient interface {
	GetUser(ctx context.Context, authToken string) (*models.Account, error)
	GetServers(ctx context.Context, authToken string) []models.ServerDescriptor
	GetLibraries(ctx context.Context, serverURL, authToken string) ([]models.LibrarySection, error)
	GetLibraryContent(ctx context.Context, serverURL, authToken, sectionKey, typeFilter string) (*plex.LibraryContent, error)
	SearchLibrary(ctx context.Context, serverURL, authToken, sectionKey, query string) ([]models.MediaItem, error)
	GetCollections(ctx context.Context, serverURL, authToken, sectionKey string) ([]models.Collection, error)
	GetPlaylists(ctx context.Context, serverURL, authToken string) ([]models.Collection, error)
	GetCollectionItems(ctx context.Context, serverURL, authToken, key string) ([]models.MediaItem, error)
	GetPlaylistItems(ctx context.Context, serverURL, authToken, key string) ([]models.MediaItem, error)
}

// Handler holds the HTTP handlers and their dependencies.
type Handler struct {
	flow          *auth.Flow
	gate          *auth.Gate
	plex          CatalogClient
	sessionMaxAge int
	secureCookies bool
}

// NewHandler creates the boundary handler set.
func NewHandler(flow *auth.Flow, gate *auth.Gate, client CatalogClient, cfg *config.Config) *Handler {
	return &Handler{
		flow:          flow,
		gate:          gate,
		plex:          client,
		sessionMaxAge: int(cfg.Session.TTL.Seconds()),
		secureCookies: cfg.Server.SecureCookies,
	}
}

// Health reports process liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreatePIN handles POST /auth/pin. Issues a fresh PIN and the
// authorization deep link the user must open on plex.tv.
func (h *Handler) CreatePIN(w http.ResponseWriter, r *http.Request) {
	grant, err := h.flow.Start(r.Context())
	if err != nil {
		logger := logging.Ctx(r.Context())
		logger.Error().Err(err).Msg("PIN request failed")
		respondError(w, http.StatusInternalServerError, "Failed to request PIN")
		return
	}
	respondJSON(w, http.StatusOK, grant)
}

type checkPINRequest struct {
	PinID int `json:"pinId"`
}

type checkPINResponse struct {
	Authorized bool           `json:"authorized"`
	User       *auth.UserInfo `json:"user,omitempty"`
}

// CheckPIN handles POST /auth/check. Reads the PIN state once; on the
// first authorized observation it mints the session cookie. Checking a
// pending PIN any number of times has no side effects.
func (h *Handler) CheckPIN(w http.ResponseWriter, r *http.Request) {
	var req checkPINRequest
	if err := decodeJSON(r, &req, maxAuthBodyBytes); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.PinID <= 0 {
		respondError(w, http.StatusBadRequest, "pinId is required")
		return
	}

	result, err := h.flow.Check(r.Context(), req.PinID)
	if err != nil {
		if errors.Is(err, plex.ErrPINNotFound) {
			respondError(w, http.StatusNotFound, "PIN not found or expired")
			return
		}
		logger := logging.Ctx(r.Context())
		logger.Error().Err(err).Int("pin_id", req.PinID).Msg("PIN check failed")
		respondError(w, http.StatusInternalServerError, "Failed to check PIN")
		return
	}

	if !result.Authorized {
		respondJSON(w, http.StatusOK, checkPINResponse{Authorized: false})
		return
	}

	session.SetCookie(w, result.SessionToken, h.sessionMaxAge, h.secureCookies)
	respondJSON(w, http.StatusOK, checkPINResponse{Authorized: true, User: result.User})
}

// Logout handles POST /auth/logout. Stateless sessions cannot be revoked
// upstream; clearing the cookie is the whole operation.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	session.ClearCookie(w, h.secureCookies)
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type sessionResponse struct {
	Authenticated bool                     `json:"authenticated"`
	User          *auth.UserInfo           `json:"user,omitempty"`
	Server        *models.ServerDescriptor `json:"server,omitempty"`
}

// Session handles GET /auth/session. Validates the cookie, refreshes the
// account from the identity provider and re-resolves the primary server
// live; servers are never cached across requests.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	claims, err := h.gate.Require(r)
	if err != nil {
		respondJSON(w, http.StatusUnauthorized, sessionResponse{Authenticated: false})
		return
	}

	ctx := r.Context()
	account, err := h.plex.GetUser(ctx, claims.AuthToken)
	if err != nil {
		if errors.Is(err, plex.ErrInvalidToken) {
			// Token revoked upstream; the cookie is dead weight.
			session.ClearCookie(w, h.secureCookies)
			respondJSON(w, http.StatusUnauthorized, sessionResponse{Authenticated: false})
			return
		}
		logger := logging.Ctx(ctx)
		logger.Error().Err(err).Msg("Account refresh failed")
		respondError(w, http.StatusInternalServerError, "Failed to load account")
		return
	}

	resp := sessionResponse{
		Authenticated: true,
		User: &auth.UserInfo{
			Username: account.Username,
			Email:    account.Email,
			Thumb:    account.Thumb,
		},
	}
	if servers := h.plex.GetServers(ctx, claims.AuthToken); len(servers) > 0 {
		resp.Server = &servers[0]
	}
	respondJSON(w, http.StatusOK, resp)
}

// primaryServer resolves the first reachable server for the session's
// token. An empty discovery result is the documented "no server
// available" precondition failure, not an internal error.
func (h *Handler) primaryServer(r *http.Request) (*models.ServerDescriptor, *session.IdentityClaims, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return nil, nil, false
	}
	servers := h.plex.GetServers(r.Context(), claims.AuthToken)
	if len(servers) == 0 {
		return nil, claims, false
	}
	return &servers[0], claims, true
}

// serverToken prefers the server-scoped access token over the account
// token; shared-server grants require it.
func serverToken(server *models.ServerDescriptor, claims *session.IdentityClaims) string {
	if server.AccessToken != "" {
		return server.AccessToken
	}
	return claims.AuthToken
}

// Libraries handles GET /libraries. Lists the primary server's sections.
func (h *Handler) Libraries(w http.ResponseWriter, r *http.Request) {
	server, claims, ok := h.primaryServer(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "No Plex server available")
		return
	}

	sections, err := h.plex.GetLibraries(r.Context(), server.Host, serverToken(server, claims))
	if err != nil {
		logger := logging.Ctx(r.Context())
		logger.Error().Err(err).Msg("Library listing failed")
		respondError(w, http.StatusInternalServerError, "Failed to load libraries")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"libraries": sections})
}

// Collections handles GET /collections?sectionKey&type. A type of
// "playlists" switches to the server-global playlist listing, which
// needs no section.
func (h *Handler) Collections(w http.ResponseWriter, r *http.Request) {
	server, claims, ok := h.primaryServer(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "No Plex server available")
		return
	}
	token := serverToken(server, claims)

	if r.URL.Query().Get("type") == "playlists" {
		playlists, err := h.plex.GetPlaylists(r.Context(), server.Host, token)
		if err != nil {
			logger := logging.Ctx(r.Context())
			logger.Error().Err(err).Msg("Playlist listing failed")
			respondError(w, http.StatusInternalServerError, "Failed to load playlists")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"items": playlists})
		return
	}

	sectionKey := r.URL.Query().Get("sectionKey")
	if sectionKey == "" {
		respondError(w, http.StatusBadRequest, "sectionKey is required")
		return
	}

	collections, err := h.plex.GetCollections(r.Context(), server.Host, token, sectionKey)
	if err != nil {
		logger := logging.Ctx(r.Context())
		logger.Error().Err(err).Str("section", sectionKey).Msg("Collection listing failed")
		respondError(w, http.StatusInternalServerError, "Failed to load collections")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"items": collections})
}

// Media handles GET /media. Exactly one source selects the listing:
// collectionKey, playlistKey, or sectionKey. Within a section, query
// switches to title search and viewMode picks the item type for music
// libraries (artists or albums).
func (h *Handler) Media(w http.ResponseWriter, r *http.Request) {
	server, claims, ok := h.primaryServer(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "No Plex server available")
		return
	}
	token := serverToken(server, claims)
	q := r.URL.Query()
	ctx := r.Context()

	if key := q.Get("collectionKey"); key != "" {
		items, err := h.plex.GetCollectionItems(ctx, server.Host, token, key)
		if err != nil {
			logger := logging.Ctx(ctx)
			logger.Error().Err(err).Str("collection", key).Msg("Collection content failed")
			respondError(w, http.StatusInternalServerError, "Failed to load collection items")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
		return
	}

	if key := q.Get("playlistKey"); key != "" {
		items, err := h.plex.GetPlaylistItems(ctx, server.Host, token, key)
		if err != nil {
			logger := logging.Ctx(ctx)
			logger.Error().Err(err).Str("playlist", key).Msg("Playlist content failed")
			respondError(w, http.StatusInternalServerError, "Failed to load playlist items")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
		return
	}

	sectionKey := q.Get("sectionKey")
	if sectionKey == "" {
		respondError(w, http.StatusBadRequest, "sectionKey, collectionKey or playlistKey is required")
		return
	}

	if query := q.Get("query"); query != "" {
		items, err := h.plex.SearchLibrary(ctx, server.Host, token, sectionKey, query)
		if err != nil {
			logger := logging.Ctx(ctx)
			logger.Error().Err(err).Str("section", sectionKey).Msg("Library search failed")
			respondError(w, http.StatusInternalServerError, "Failed to search library")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
		return
	}

	// Music sections hold two item levels; viewMode selects which one.
	var typeFilter string
	switch q.Get("viewMode") {
	case "artists":
		typeFilter = "8"
	case "albums":
		typeFilter = "9"
	}

	content, err := h.plex.GetLibraryContent(ctx, server.Host, token, sectionKey, typeFilter)
	if err != nil {
		logger := logging.Ctx(ctx)
		logger.Error().Err(err).Str("section", sectionKey).Msg("Library content failed")
		respondError(w, http.StatusInternalServerError, "Failed to load library content")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items": content.Items,
		"total": content.Total,
	})
}

type exportRequest struct {
	Items       []models.MediaItem `json:"items" validate:"required,min=1"`
	LibraryType string             `json:"libraryType" validate:"required"`
	Format      string             `json:"format" validate:"required,oneof=csv json"`
}

// Export handles POST /export. Projects the submitted items through the
// per-type column table and streams the result as a file download.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeJSON(r, &req, maxExportBodyBytes); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, http.StatusBadRequest, verr.Error())
		return
	}

	records := export.Format(req.Items, req.LibraryType)
	filename := fmt.Sprintf("plex-export-%s.%s", time.Now().UTC().Format("20060102-150405"), req.Format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	var err error
	switch req.Format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		err = export.WriteCSV(w, records)
	case "json":
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		err = export.WriteJSON(w, records)
	}
	if err != nil {
		// Headers are gone; all we can do is log.
		logger := logging.Ctx(r.Context())
		logger.Error().Err(err).Str("format", req.Format).Msg("Export write failed")
		return
	}

	logger := logging.Ctx(r.Context())
	logger.Info().
		Str("format", req.Format).
		Str("library_type", req.LibraryType).
		Int("items", len(req.Items)).
		Msg("Export generated")
}
