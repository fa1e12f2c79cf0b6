// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dosentrack/dosentrack/internal/models"
)

// AccountDirectory resolves account ids to stored accounts. The
// authenticator uses it to confirm a token's subject still exists.
type AccountDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
}

// ConnectionAuthenticator resolves an inbound connection's credential
// into a typed Identity. It runs exactly once per connection, before
// any other event is processed; the resulting identity and role are
// trusted for the connection's lifetime.
type ConnectionAuthenticator struct {
	manager  *JWTManager
	accounts AccountDirectory
}

// NewConnectionAuthenticator creates a connection authenticator.
func NewConnectionAuthenticator(manager *JWTManager, accounts AccountDirectory) *ConnectionAuthenticator {
	return &ConnectionAuthenticator{manager: manager, accounts: accounts}
}

// Authenticate extracts the bearer token from the upgrade request,
// validates it, and re-resolves the account. Any failure is terminal
// for the connection and mutates no engine state.
func (a *ConnectionAuthenticator) Authenticate(ctx context.Context, r *http.Request) (models.Identity, error) {
	tokenStr := ExtractToken(r)
	if tokenStr == "" {
		return models.Identity{}, ErrNoCredentials
	}

	claims, err := a.manager.ValidateToken(tokenStr)
	if err != nil {
		return models.Identity{}, err
	}

	account, err := a.accounts.FindByID(ctx, claims.UserID)
	if err != nil {
		return models.Identity{}, fmt.Errorf("resolve account: %w", err)
	}
	if account == nil {
		return models.Identity{}, ErrUnknownIdentity
	}

	return account.Identity(), nil
}

// ExtractToken pulls the bearer token from the Authorization header,
// falling back to the token query parameter. Browser WebSocket clients
// cannot set headers on the upgrade request, hence the query fallback.
func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}
	return r.URL.Query().Get("token")
}
