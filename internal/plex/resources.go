// PlExport - Plex Library Export Tool
// Copyright 2026 PlExport contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plexport/plexport

package plex

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/plexport/plexport/internal/logging"
	"github.com/plexport/plexport/internal/models"
)

// GetServers lists the media servers reachable by an auth token, in the
// provider's order. The first entry is the primary server; order is the
// tie-break, not a quality ranking.
//
// Server discovery degrades gracefully: any failure (transport, status,
// parse) logs a warning and returns an empty slice, because downstream code
// treats "no servers" as a normal, reportable condition. A transient
// provider blip is therefore indistinguishable from an empty account; the
// warning log and upstream error metric are the operator's signal.
//
// Endpoint: GET /api/v2/resources?includeHttps=1&includeRelay=0
func (c *Client) GetServers(ctx context.Context, authToken string) []models.ServerDescriptor {
	var resources []models.Resource
	err := c.doJSON(ctx, requestConfig{
		method: http.MethodGet,
		url:    c.apiURL + "/resources",
		query: url.Values{
			"includeHttps": {"1"},
			"includeRelay": {"0"},
		},
		token:      authToken,
		metricName: "resources",
	}, &resources)
	if err != nil {
		logger := logging.Ctx(ctx)
		logger.Warn().Err(err).Msg("Server discovery failed, returning empty list")
		return nil
	}

	servers := make([]models.ServerDescriptor, 0, len(resources))
	for _, res := range resources {
		if !strings.Contains(res.Provides, "server") {
			continue
		}

		server := models.ServerDescriptor{
			Name:              res.Name,
			MachineIdentifier: res.ClientIdentifier,
			Version:           res.ProductVersion,
			AccessToken:       res.AccessToken,
		}
		// First connection wins, matching the primary-server policy.
		if len(res.Connections) > 0 {
			server.Host = res.Connections[0].URI
			server.Address = res.Connections[0].Address
			server.Port = res.Connections[0].Port
		}
		if server.Port == 0 {
			server.Port = 32400
		}
		servers = append(servers, server)
	}
	return servers
}
