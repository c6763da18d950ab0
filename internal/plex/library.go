// PlExport - Plex Library Export Tool
// Copyright 2026 PlExport contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plexport/plexport

package plex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/plexport/plexport/internal/models"
)

// LibraryContent is one page of a library section listing.
type LibraryContent struct {
	Items []models.MediaItem
	Total int
}

// GetLibraries lists the library sections of a media server.
//
// Endpoint: GET {server}/library/sections
func (c *Client) GetLibraries(ctx context.Context, serverURL, authToken string) ([]models.LibrarySection, error) {
	var resp models.SectionsResponse
	err := c.doJSON(ctx, requestConfig{
		method:     http.MethodGet,
		url:        joinServerPath(serverURL, "/library/sections"),
		token:      authToken,
		metricName: "library.sections",
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("get libraries: %w", err)
	}
	return resp.MediaContainer.Directory, nil
}

// GetLibraryContent lists the items of a library section. typeFilter, when
// non-empty, restricts the listing to one item kind (Plex numeric type
// code, e.g. "8" for artists, "9" for albums within an artist section).
//
// Endpoint: GET {server}/library/sections/{key}/all[?type=N]
func (c *Client) GetLibraryContent(ctx context.Context, serverURL, authToken, sectionKey, typeFilter string) (*LibraryContent, error) {
	query := url.Values{}
	if typeFilter != "" {
		query.Set("type", typeFilter)
	}

	var resp models.ItemsResponse
	err := c.doJSON(ctx, requestConfig{
		method:     http.MethodGet,
		url:        joinServerPath(serverURL, "/library/sections/"+url.PathEscape(sectionKey)+"/all"),
		query:      query,
		token:      authToken,
		metricName: "library.content",
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("get library content: %w", err)
	}
	return &LibraryContent{
		Items: resp.MediaContainer.Metadata,
		Total: resp.MediaContainer.Size,
	}, nil
}

// SearchLibrary lists the items of a library section whose title matches
// the query.
//
// Endpoint: GET {server}/library/sections/{key}/all?title={query}
func (c *Client) SearchLibrary(ctx context.Context, serverURL, authToken, sectionKey, query string) ([]models.MediaItem, error) {
	var resp models.ItemsResponse
	err := c.doJSON(ctx, requestConfig{
		method:     http.MethodGet,
		url:        joinServerPath(serverURL, "/library/sections/"+url.PathEscape(sectionKey)+"/all"),
		query:      url.Values{"title": {query}},
		token:      authToken,
		metricName: "library.search",
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("search library: %w", err)
	}
	return resp.MediaContainer.Metadata, nil
}

// GetCollections lists the collections of a library section.
//
// Endpoint: GET {server}/library/sections/{key}/collections
func (c *Client) GetCollections(ctx context.Context, serverURL, authToken, sectionKey string) ([]models.Collection, error) {
	var resp models.CollectionsResponse
	err := c.doJSON(ctx, requestConfig{
		method:     http.MethodGet,
		url:        joinServerPath(serverURL, "/library/sections/"+url.PathEscape(sectionKey)+"/collections"),
		token:      authToken,
		metricName: "library.collections",
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("get collections: %w", err)
	}
	return resp.MediaContainer.Metadata, nil
}

// GetPlaylists lists the playlists visible to the token. Playlists are
// global, not scoped to a section.
//
// Endpoint: GET {server}/playlists
func (c *Client) GetPlaylists(ctx context.Context, serverURL, authToken string) ([]models.Collection, error) {
	var resp models.CollectionsResponse
	err := c.doJSON(ctx, requestConfig{
		method:     http.MethodGet,
		url:        joinServerPath(serverURL, "/playlists"),
		token:      authToken,
		metricName: "playlists",
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("get playlists: %w", err)
	}
	return resp.MediaContainer.Metadata, nil
}

// GetCollectionItems lists the items of a collection. key is the
// provider-issued collection key (a full path like
// /library/collections/123/children).
func (c *Client) GetCollectionItems(ctx context.Context, serverURL, authToken, key string) ([]models.MediaItem, error) {
	var resp models.ItemsResponse
	err := c.doJSON(ctx, requestConfig{
		method:     http.MethodGet,
		url:        joinServerPath(serverURL, key),
		token:      authToken,
		metricName: "collection.items",
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("get collection items: %w", err)
	}
	return resp.MediaContainer.Metadata, nil
}

// GetPlaylistItems lists the items of a playlist. key is the
// provider-issued playlist key (e.g. /playlists/456).
func (c *Client) GetPlaylistItems(ctx context.Context, serverURL, authToken, key string) ([]models.MediaItem, error) {
	var resp models.ItemsResponse
	err := c.doJSON(ctx, requestConfig{
		method:     http.MethodGet,
		url:        joinServerPath(serverURL, strings.TrimRight(key, "/")+"/items"),
		token:      authToken,
		metricName: "playlist.items",
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("get playlist items: %w", err)
	}
	return resp.MediaContainer.Metadata, nil
}

// joinServerPath joins a server base URL and a provider-issued path.
func joinServerPath(serverURL, path string) string {
	return strings.TrimRight(serverURL, "/") + path
}
