// PlExport - Plex Library Export Tool
// Copyright 2026 PlExport contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plexport/plexport

// Package auth orchestrates the PIN-based delegated-authentication flow and
// guards protected operations with the session gate.
//
// The flow itself is stateless: it keys every step by the provider-issued
// PIN identifier and keeps nothing between calls. Polling is the caller's
// responsibility; Check is a plain idempotent read.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/plexport/plexport/internal/logging"
	"github.com/plexport/plexport/internal/models"
	"github.com/plexport/plexport/internal/plex"
	"github.com/plexport/plexport/internal/session"
)

// ErrPollTimeout indicates the PIN was not authorized within the polling
// window.
var ErrPollTimeout = errors.New("PIN authorization timed out")

// ProviderClient is the slice of the Plex client the flow depends on.
type ProviderClient interface {
	RequestPIN(ctx context.Context) (*models.AuthPin, error)
	CheckPIN(ctx context.Context, pinID int) (*models.AuthPin, error)
	GetUser(ctx context.Context, authToken string) (*models.Account, error)
	GetServers(ctx context.Context, authToken string) []models.ServerDescriptor
	BuildAuthURL(code string) string
}

// Flow manages PIN issuance and exchange against the identity provider.
type Flow struct {
	client ProviderClient
	codec  *session.Codec
}

// NewFlow creates a delegated-auth flow.
func NewFlow(client ProviderClient, codec *session.Codec) *Flow {
	return &Flow{client: client, codec: codec}
}

// PinGrant is a freshly issued PIN the user must authorize out-of-band.
type PinGrant struct {
	ID      int    `json:"id"`
	Code    string `json:"code"`
	AuthURL string `json:"authUrl"`
}

// UserInfo is the user summary returned to the caller on successful
// authorization. Not persisted into the session.
type UserInfo struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Thumb    string `json:"thumb"`
}

// CheckResult is the outcome of one PIN check.
type CheckResult struct {
	Authorized bool

	// User and SessionToken are set only when Authorized.
	User         *UserInfo
	SessionToken string
}

// Start requests a new PIN from the provider and returns it with the
// authorization deep link.
func (f *Flow) Start(ctx context.Context) (*PinGrant, error) {
	pin, err := f.client.RequestPIN(ctx)
	if err != nil {
		return nil, err
	}
	return &PinGrant{
		ID:      pin.ID,
		Code:    pin.Code,
		AuthURL: f.client.BuildAuthURL(pin.Code),
	}, nil
}

// Check reads the PIN state once. A PIN without an auth token yields
// {Authorized:false}. On first observation of an auth token the flow
// fetches identity and server list concurrently (no ordering dependency),
// mints a session token and returns it with the user summary.
//
// Transport or provider errors surface as errors, never as "not yet
// authorized": callers must not mistake an outage for a pending PIN.
func (f *Flow) Check(ctx context.Context, pinID int) (*CheckResult, error) {
	pin, err := f.client.CheckPIN(ctx, pinID)
	if err != nil {
		return nil, err
	}

	if !pin.Authorized() {
		return &CheckResult{Authorized: false}, nil
	}

	var (
		wg      sync.WaitGroup
		servers []models.ServerDescriptor
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		servers = f.client.GetServers(ctx, pin.AuthToken)
	}()

	account, err := f.client.GetUser(ctx, pin.AuthToken)
	wg.Wait()
	if err != nil {
		return nil, fmt.Errorf("fetch identity: %w", err)
	}

	logger := logging.Ctx(ctx)
	logger.Debug().
		Str("user", account.Username).
		Int("servers", len(servers)).
		Msg("PIN authorized")

	token, err := f.codec.Encode(session.IdentityClaims{
		AuthToken: pin.AuthToken,
		UserID:    account.ID,
		Username:  account.Username,
	})
	if err != nil {
		return nil, fmt.Errorf("mint session: %w", err)
	}

	return &CheckResult{
		Authorized: true,
		User: &UserInfo{
			Username: account.Username,
			Email:    account.Email,
			Thumb:    account.Thumb,
		},
		SessionToken: token,
	}, nil
}

// Poll drives Check on a fixed interval until the PIN is authorized, the
// PIN expires upstream, or the deadline passes. Total polling duration is
// always capped: if ctx carries no deadline, maxWait bounds it.
//
// Transient transport errors are retried up to a small consecutive-error
// budget before surfacing, so a provider outage does not masquerade as a
// perpetually pending PIN. HTTP callers poll client-side instead of using
// this helper.
func (f *Flow) Poll(ctx context.Context, pinID int, interval, maxWait time.Duration) (*CheckResult, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if _, ok := ctx.Deadline(); !ok {
		if maxWait <= 0 {
			maxWait = 5 * time.Minute
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, maxWait)
		defer cancel()
	}

	const maxConsecutiveErrors = 5
	consecutiveErrors := 0

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ErrPollTimeout
		case <-ticker.C:
			result, err := f.Check(ctx, pinID)
			if err != nil {
				if errors.Is(err, plex.ErrPINNotFound) {
					return nil, err
				}
				consecutiveErrors++
				if consecutiveErrors >= maxConsecutiveErrors {
					return nil, fmt.Errorf("polling aborted after %d consecutive errors: %w", consecutiveErrors, err)
				}
				continue
			}
			consecutiveErrors = 0

			if result.Authorized {
				return result, nil
			}
		}
	}
}
