// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

package api

import (
	"net/http"

	"github.com/dosentrack/dosentrack/internal/auth"
	"github.com/dosentrack/dosentrack/internal/config"
	"github.com/dosentrack/dosentrack/internal/store"
	"github.com/dosentrack/dosentrack/internal/websocket"
)

// Handler holds the dependencies shared by all HTTP handlers.
type Handler struct {
	cfg           *config.Config
	db            *store.DB
	accounts      *store.AccountStore
	permissions   *store.PermissionStore
	locations     *store.LocationStore
	history       *store.HistoryStore
	hub           *websocket.Hub
	wsRouter      *websocket.Router
	authenticator *auth.ConnectionAuthenticator
	tokens        *auth.JWTManager
}

// HandlerDeps bundles the collaborators a Handler needs.
type HandlerDeps struct {
	Config        *config.Config
	DB            *store.DB
	Accounts      *store.AccountStore
	Permissions   *store.PermissionStore
	Locations     *store.LocationStore
	History       *store.HistoryStore
	Hub           *websocket.Hub
	WSRouter      *websocket.Router
	Authenticator *auth.ConnectionAuthenticator
	Tokens        *auth.JWTManager
}

// NewHandler creates the shared handler.
func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		cfg:           deps.Config,
		db:            deps.DB,
		accounts:      deps.Accounts,
		permissions:   deps.Permissions,
		locations:     deps.Locations,
		history:       deps.History,
		hub:           deps.Hub,
		wsRouter:      deps.WSRouter,
		authenticator: deps.Authenticator,
		tokens:        deps.Tokens,
	}
}

// Health reports process liveness and database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	respondData(w, code, map[string]any{
		"status":  status,
		"clients": h.hub.GetClientCount(),
	})
}
