// PlExport - Plex Library Export Tool
// Copyright 2026 PlExport contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plexport/plexport

package plex

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/plexport/plexport/internal/logging"
	"github.com/plexport/plexport/internal/metrics"
	"github.com/plexport/plexport/internal/models"
)

// BreakerClient wraps Client with a circuit breaker on the plex.tv identity
// endpoints, preventing pile-ups against an unavailable provider.
//
// Catalog reads and server discovery are not wrapped: discovery already
// degrades to an empty list, and catalog calls target the user's own media
// server rather than the shared identity provider.
//
// The breaker uses real time for its interval and timeout calculations;
// unit tests should exercise the wrapped Client directly.
type BreakerClient struct {
	*Client
	cb *gobreaker.CircuitBreaker[interface{}]
}

// NewBreakerClient wraps client with a circuit breaker.
// The circuit opens after a 60% failure rate over at least 5 requests,
// waits 1 minute before probing, and allows 2 half-open requests.
func NewBreakerClient(client *Client) *BreakerClient {
	const cbName = "plex-tv"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},

		// Business outcomes are not provider failures: a missing PIN or a
		// rejected token must not open the circuit.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrPINNotFound) || errors.Is(err, ErrInvalidToken)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &BreakerClient{Client: client, cb: cb}
}

// RequestPIN requests a PIN through the circuit breaker.
func (b *BreakerClient) RequestPIN(ctx context.Context) (*models.AuthPin, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.Client.RequestPIN(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.AuthPin), nil
}

// CheckPIN checks a PIN through the circuit breaker.
func (b *BreakerClient) CheckPIN(ctx context.Context, pinID int) (*models.AuthPin, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.Client.CheckPIN(ctx, pinID)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.AuthPin), nil
}

// GetUser fetches the account through the circuit breaker.
func (b *BreakerClient) GetUser(ctx context.Context, authToken string) (*models.Account, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.Client.GetUser(ctx, authToken)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Account), nil
}

// stateToFloat maps breaker states to the metric encoding.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
