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
	"strconv"

	"github.com/plexport/plexport/internal/models"
)

// RequestPIN asks plex.tv for a new authentication PIN.
//
// Endpoint: POST /api/v2/pins
func (c *Client) RequestPIN(ctx context.Context) (*models.AuthPin, error) {
	var pin models.AuthPin
	err := c.doJSON(ctx, requestConfig{
		method:     http.MethodPost,
		url:        c.apiURL + "/pins",
		query:      url.Values{"strong": {"true"}},
		metricName: "pins.create",
	}, &pin)
	if err != nil {
		return nil, fmt.Errorf("request PIN: %w", err)
	}
	return &pin, nil
}

// CheckPIN reads the current state of a PIN. A plain idempotent read: the
// provider is the source of truth for whether the PIN was claimed, and no
// local state is kept between calls.
//
// Endpoint: GET /api/v2/pins/{id}
func (c *Client) CheckPIN(ctx context.Context, pinID int) (*models.AuthPin, error) {
	var pin models.AuthPin
	err := c.doJSON(ctx, requestConfig{
		method:     http.MethodGet,
		url:        c.apiURL + "/pins/" + strconv.Itoa(pinID),
		metricName: "pins.check",
	}, &pin)
	if err != nil {
		return nil, err
	}
	return &pin, nil
}

// BuildAuthURL constructs the app.plex.tv deep link where the user
// authorizes a PIN code. Construction is stable: the out-of-band flow shows
// the code to the user and opens this URL in a separate context.
func (c *Client) BuildAuthURL(code string) string {
	params := url.Values{}
	params.Set("clientID", c.clientID)
	params.Set("code", code)
	params.Set("context[device][product]", c.product)
	return plexAuthBaseURL + "?" + params.Encode()
}
