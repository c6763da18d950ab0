// PlExport - Plex Library Export Tool
// Copyright 2026 PlExport contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plexport/plexport

// Package plex implements the Plex resource client: PIN issuance and
// polling against plex.tv, account and server discovery, and catalog reads
// against a resolved Plex Media Server.
//
// Every operation is fully parameterized by its arguments (zero or one
// bearer token, plus an explicit server URL for catalog reads); the client
// holds no per-session state and is safe to share across sessions. Each
// upstream call is bounded by the configured HTTP timeout and the caller's
// context.
package plex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/plexport/plexport/internal/config"
	"github.com/plexport/plexport/internal/metrics"
)

// Client errors.
var (
	// ErrPINNotFound indicates the PIN was not found or has expired upstream.
	ErrPINNotFound = errors.New("PIN not found or expired")

	// ErrPlexAPIFailed indicates a Plex API call failed.
	ErrPlexAPIFailed = errors.New("Plex API request failed")

	// ErrInvalidToken indicates the bearer token was rejected upstream.
	ErrInvalidToken = errors.New("Plex auth token rejected")
)

// plexAuthBaseURL is where users authorize a PIN code out-of-band.
const plexAuthBaseURL = "https://app.plex.tv/auth#"

// Client talks to plex.tv and to Plex Media Servers.
type Client struct {
	httpClient *http.Client

	clientID string
	product  string
	version  string

	// Endpoints, overridable for testing against httptest servers.
	apiURL     string
	accountURL string
}

// NewClient creates a Plex client from configuration.
func NewClient(cfg *config.PlexConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		clientID:   cfg.ClientIdentifier,
		product:    cfg.Product,
		version:    cfg.Version,
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		accountURL: strings.TrimRight(cfg.AccountURL, "/"),
	}
}

// ClientIdentifier returns the X-Plex-Client-Identifier this client sends.
func (c *Client) ClientIdentifier() string {
	return c.clientID
}

// SetAPIURL overrides the plex.tv v2 API base. For testing.
func (c *Client) SetAPIURL(u string) {
	c.apiURL = strings.TrimRight(u, "/")
}

// SetAccountURL overrides the plex.tv account base. For testing.
func (c *Client) SetAccountURL(u string) {
	c.accountURL = strings.TrimRight(u, "/")
}

// setPlexHeaders sets the identification headers Plex requires on every call.
func (c *Client) setPlexHeaders(req *http.Request, token string) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Client-Identifier", c.clientID)
	req.Header.Set("X-Plex-Product", c.product)
	req.Header.Set("X-Plex-Version", c.version)
	if token != "" {
		req.Header.Set("X-Plex-Token", token)
	}
}

// requestConfig holds configuration for building upstream requests.
type requestConfig struct {
	method string
	url    string
	query  url.Values
	token  string

	// metricName labels the upstream call in Prometheus.
	metricName string
}

// doJSON executes an upstream request and decodes the JSON response into
// result. 401/403 map to ErrInvalidToken, 404 to ErrPINNotFound, any other
// non-2xx status to ErrPlexAPIFailed.
func (c *Client) doJSON(ctx context.Context, cfg requestConfig, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, cfg.method, cfg.url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setPlexHeaders(req, cfg.token)
	if len(cfg.query) > 0 {
		req.URL.RawQuery = cfg.query.Encode()
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RecordUpstreamRequest(cfg.metricName, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPlexAPIFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.UpstreamErrorsTotal.WithLabelValues(cfg.metricName).Inc()
		return ErrPINNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		metrics.UpstreamErrorsTotal.WithLabelValues(cfg.metricName).Inc()
		return ErrInvalidToken
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		metrics.UpstreamErrorsTotal.WithLabelValues(cfg.metricName).Inc()
		// Drain a bounded amount for the log line; provider bodies never
		// reach API clients.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrPlexAPIFailed, resp.StatusCode, string(body))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
