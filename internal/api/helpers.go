// PlExport - Plex Library Export Tool
// Copyright 2026 PlExport contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plexport/plexport

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/plexport/plexport/internal/logging"
)

// respondJSON writes v as a JSON response with the given status code.
// Encoding failures after the header is written can only be logged.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// respondError writes the uniform error body {"error": message}.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a request body into v, bounding the body size.
// Returns a client-presentable error on malformed or oversized input.
func decodeJSON(r *http.Request, v interface{}, maxBytes int64) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxBytes)
		}
		return errors.New("invalid JSON body")
	}
	return nil
}
