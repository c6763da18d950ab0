// PlExport - Plex Library Export Tool
// Copyright 2026 PlExport contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plexport/plexport

// Package config provides layered configuration for PlExport using Koanf:
// struct defaults, then an optional YAML config file, then PLEXPORT_-prefixed
// environment variables (highest priority).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config is the root configuration for the PlExport server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Session   SessionConfig   `koanf:"session"`
	Plex      PlexConfig      `koanf:"plex"`
	Logging   LoggingConfig   `koanf:"logging"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the listen address. Empty binds all interfaces.
	Host string `koanf:"host"`

	// Port is the listen port.
	Port int `koanf:"port"`

	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// SecureCookies marks the session cookie Secure. Enable in production
	// behind TLS.
	SecureCookies bool `koanf:"secure_cookies"`

	// CORSOrigins lists allowed CORS origins. Empty disallows cross-origin
	// requests (comma-separated when set via environment).
	CORSOrigins []string `koanf:"cors_origins"`
}

// SessionConfig holds signed-session settings.
type SessionConfig struct {
	// Secret signs session tokens (HMAC-SHA256). Minimum 32 characters.
	// Rotating the secret invalidates all outstanding sessions.
	Secret string `koanf:"secret"`

	// TTL is the session lifetime. Sessions expire exactly TTL after issuance.
	TTL time.Duration `koanf:"ttl"`
}

// PlexConfig holds plex.tv and Plex Media Server client settings.
type PlexConfig struct {
	// ClientIdentifier is the X-Plex-Client-Identifier sent on every
	// provider call. Auto-generated per process if empty.
	ClientIdentifier string `koanf:"client_identifier"`

	// Product is the X-Plex-Product name shown on the Plex authorization page.
	Product string `koanf:"product"`

	// Version is the X-Plex-Version header value.
	Version string `koanf:"version"`

	// APIURL is the plex.tv v2 API base (PIN and resource endpoints).
	APIURL string `koanf:"api_url"`

	// AccountURL is the plex.tv base for the legacy XML account endpoint.
	AccountURL string `koanf:"account_url"`

	// Timeout bounds every upstream HTTP call.
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// RateLimitConfig holds HTTP rate limiting settings.
type RateLimitConfig struct {
	// Requests per Window for general API endpoints.
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`

	// AuthRequests per AuthWindow for /auth endpoints (brute force prevention).
	AuthRequests int           `koanf:"auth_requests"`
	AuthWindow   time.Duration `koanf:"auth_window"`

	Disabled bool `koanf:"disabled"`
}

// defaultConfig returns a Config with all sensible default values.
// Defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "",
			Port:            3000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			SecureCookies:   false,
			CORSOrigins:     []string{},
		},
		Session: SessionConfig{
			Secret: "",
			TTL:    7 * 24 * time.Hour,
		},
		Plex: PlexConfig{
			ClientIdentifier: "",
			Product:          "PlExport",
			Version:          "1.0.0",
			APIURL:           "https://plex.tv/api/v2",
			AccountURL:       "https://plex.tv",
			Timeout:          30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		RateLimit: RateLimitConfig{
			Requests:     100,
			Window:       time.Minute,
			AuthRequests: 15,
			AuthWindow:   time.Minute,
			Disabled:     false,
		},
	}
}

// Validate checks the configuration for errors and fills derived defaults.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("session.secret must be at least 32 characters (got %d)", len(c.Session.Secret))
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	if c.Plex.Timeout <= 0 {
		return fmt.Errorf("plex.timeout must be positive")
	}
	if !strings.HasPrefix(c.Plex.APIURL, "http://") && !strings.HasPrefix(c.Plex.APIURL, "https://") {
		return fmt.Errorf("plex.api_url must be an http(s) URL")
	}
	if !strings.HasPrefix(c.Plex.AccountURL, "http://") && !strings.HasPrefix(c.Plex.AccountURL, "https://") {
		return fmt.Errorf("plex.account_url must be an http(s) URL")
	}
	if c.Plex.ClientIdentifier == "" {
		// Stable for the process lifetime; the identifier keys the PIN flow.
		c.Plex.ClientIdentifier = "plexport-" + uuid.New().String()
	}
	return nil
}

// ListenAddr returns the host:port to bind the HTTP server on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
