// PlExport - Plex Library Export Tool
// Copyright 2026 PlExport contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plexport/plexport

package plex

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/plexport/plexport/internal/metrics"
	"github.com/plexport/plexport/internal/models"
)

// GetUser fetches the plex.tv account for an auth token.
//
// Unlike the v2 endpoints this one answers with structured markup, so it
// bypasses the JSON request helper; callers still receive the same internal
// shape as every other operation.
//
// Endpoint: GET /users/account
func (c *Client) GetUser(ctx context.Context, authToken string) (*models.Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.accountURL+"/users/account", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create account request: %w", err)
	}
	req.Header.Set("X-Plex-Client-Identifier", c.clientID)
	req.Header.Set("X-Plex-Product", c.product)
	req.Header.Set("X-Plex-Token", authToken)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RecordUpstreamRequest("users.account", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlexAPIFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		metrics.UpstreamErrorsTotal.WithLabelValues("users.account").Inc()
		return nil, ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		metrics.UpstreamErrorsTotal.WithLabelValues("users.account").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrPlexAPIFailed, resp.StatusCode, string(body))
	}

	var account models.Account
	if err := xml.NewDecoder(resp.Body).Decode(&account); err != nil {
		return nil, fmt.Errorf("decode account response: %w", err)
	}
	return &account, nil
}
