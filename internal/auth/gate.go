// PlExport - Plex Library Export Tool
// Copyright 2026 PlExport contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plexport/plexport

package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/plexport/plexport/internal/session"
)

// ErrUnauthorized is the single failure of the session gate. Missing
// cookie, expired token and bad signature all collapse to it; callers never
// learn which.
var ErrUnauthorized = errors.New("unauthorized")

// claimsKey is the context key for validated identity claims.
type claimsKey struct{}

// ClaimsFromContext returns the identity claims the gate attached to the
// request context.
func ClaimsFromContext(ctx context.Context) (*session.IdentityClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*session.IdentityClaims)
	return claims, ok
}

// Gate is the single authorization check every protected operation passes.
type Gate struct {
	codec *session.Codec
}

// NewGate creates a session gate over the given codec.
func NewGate(codec *session.Codec) *Gate {
	return &Gate{codec: codec}
}

// Require extracts and verifies the session from the request. Any failure
// is ErrUnauthorized.
func (g *Gate) Require(r *http.Request) (*session.IdentityClaims, error) {
	token, err := session.TokenFromRequest(r)
	if err != nil {
		return nil, ErrUnauthorized
	}
	claims, err := g.codec.Decode(token)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// Middleware gates a route subtree. Requests without a valid session are
// answered 401 with a uniform body before any upstream work happens;
// validated claims travel in the request context, never a hidden global.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := g.Require(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			//nolint:errcheck // nothing to do if the 401 body fails to write
			json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
