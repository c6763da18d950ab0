// PlExport - Plex Library Export Tool
// Copyright 2026 PlExport contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plexport/plexport

package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/plexport/plexport/internal/config"
	"github.com/plexport/plexport/internal/session"
)

func newGateWithToken(t *testing.T) (*Gate, string) {
	t.Helper()
	codec, err := session.NewCodec(&config.SessionConfig{Secret: testSecret, TTL: 7 * 24 * time.Hour})
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	token, err := codec.Encode(session.IdentityClaims{AuthToken: "plex-token-1", UserID: "42", Username: "alice"})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return NewGate(codec), token
}

func TestGateRequire(t *testing.T) {
	gate, token := newGateWithToken(t)

	t.Run("valid cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/libraries", nil)
		r.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})

		claims, err := gate.Require(r)
		if err != nil {
			t.Fatalf("Require() error = %v", err)
		}
		if claims.Username != "alice" || claims.AuthToken != "plex-token-1" {
			t.Errorf("claims = %+v", claims)
		}
	})

	t.Run("missing cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/libraries", nil)
		if _, err := gate.Require(r); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("Require() error = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("garbage cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/libraries", nil)
		r.AddCookie(&http.Cookie{Name: session.CookieName, Value: "not-a-token"})
		if _, err := gate.Require(r); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("Require() error = %v, want ErrUnauthorized", err)
		}
	})
}

func TestGateMiddleware(t *testing.T) {
	gate, token := newGateWithToken(t)

	var sawClaims *session.IdentityClaims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			t.Error("claims missing from handler context")
		}
		sawClaims = claims
		w.WriteHeader(http.StatusOK)
	})
	handler := gate.Middleware(next)

	t.Run("authorized request reaches handler", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/libraries", nil)
		r.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if sawClaims == nil || sawClaims.UserID != "42" {
			t.Errorf("handler claims = %+v", sawClaims)
		}
	})

	t.Run("unauthorized request is rejected before the handler", func(t *testing.T) {
		sawClaims = nil
		r := httptest.NewRequest(http.MethodGet, "/libraries", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
		if !strings.Contains(w.Body.String(), `"error":"Unauthorized"`) {
			t.Errorf("body = %q", w.Body.String())
		}
		if sawClaims != nil {
			t.Error("handler ran for unauthorized request")
		}
	})
}
