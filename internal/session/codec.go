// PlExport - Plex Library Export Tool
// Copyright 2026 PlExport contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plexport/plexport

// Package session implements the stateless signed-session lifecycle.
//
// A session is a compact HMAC-SHA256 signed token carrying the minimal
// identity claims (Plex auth token, user ID, username) plus issuance and
// expiry timestamps. The server keeps no session state; trust is
// reconstructed on every request by signature verification alone. Rotating
// the signing secret invalidates all outstanding sessions.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/plexport/plexport/internal/config"
)

// ErrInvalidSession indicates the token failed verification: bad signature,
// expired, malformed, or wrong signing method. Callers never learn which.
var ErrInvalidSession = errors.New("invalid session")

// IdentityClaims is the only data persisted into a session. Deliberately
// minimal to bound token size: never email, avatar, or server data.
type IdentityClaims struct {
	// AuthToken is the Plex bearer credential. Bearer-equivalent; the
	// transport layer must treat the whole session token as a secret.
	AuthToken string `json:"authToken"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
}

// tokenClaims binds IdentityClaims to the JWT registered claim set.
type tokenClaims struct {
	IdentityClaims
	jwt.RegisteredClaims
}

// Codec encodes and decodes session tokens. It is a pure transform with no
// knowledge of HTTP; cookie placement belongs to the caller.
type Codec struct {
	secret []byte
	ttl    time.Duration

	// now is the clock source, replaceable in tests for expiry checks.
	now func() time.Time
}

// NewCodec creates a session codec from configuration.
// The secret must be at least 32 characters.
func NewCodec(cfg *config.SessionConfig) (*Codec, error) {
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 characters")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Codec{
		secret: []byte(cfg.Secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// SetNowFunc replaces the codec's clock source. For tests.
func (c *Codec) SetNowFunc(now func() time.Time) {
	c.now = now
}

// TTL returns the configured session lifetime.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Encode mints a signed session token for the given claims, issued now and
// expiring exactly TTL later.
func (c *Codec) Encode(claims IdentityClaims) (string, error) {
	now := c.now()
	tc := &tokenClaims{
		IdentityClaims: claims,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tc)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Decode verifies signature and expiry before trusting any field. Every
// failure mode collapses to ErrInvalidSession; a partially-trusted result is
// never returned.
func (c *Codec) Decode(tokenString string) (*IdentityClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return c.secret, nil
		},
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, ErrInvalidSession
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSession
	}

	out := claims.IdentityClaims
	return &out, nil
}
