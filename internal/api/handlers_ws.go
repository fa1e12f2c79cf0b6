// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

package api

import (
	"errors"
	"net/http"
	"time"

	gorilla "github.com/gorilla/websocket"

	"github.com/dosentrack/dosentrack/internal/auth"
	"github.com/dosentrack/dosentrack/internal/logging"
	"github.com/dosentrack/dosentrack/internal/metrics"
	"github.com/dosentrack/dosentrack/internal/websocket"
)

func (h *Handler) upgrader() gorilla.Upgrader {
	return gorilla.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates browser origins against the
// configured CORS list. Requests without an Origin header come from
// non-browser clients (the mobile apps) and are allowed; browser
// origins must match the configuration.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if h.cfg == nil {
		return true
	}
	for _, allowed := range h.cfg.Server.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("websocket connection rejected from unauthorized origin")
	return false
}

// WebSocket authenticates the request and upgrades it into a live
// engine connection. Authentication happens before the upgrade; a bad
// credential terminates the request without touching engine state.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authenticator.Authenticate(r.Context(), r)
	if err != nil {
		code, reason := authFailure(err)
		metrics.AuthFailures.WithLabelValues(reason).Inc()
		respondError(w, code, "UNAUTHORIZED", "authentication failed", nil)
		return
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own response.
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.hub, conn, identity, h.wsRouter, h.cfg.Engine.InactivityTimeout)
	client.Start()
}

// authFailure maps an authentication error to an HTTP status and a
// metrics label.
func authFailure(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrNoCredentials):
		return http.StatusUnauthorized, "missing"
	case errors.Is(err, auth.ErrExpiredCredentials):
		return http.StatusUnauthorized, "expired"
	case errors.Is(err, auth.ErrUnknownIdentity):
		return http.StatusUnauthorized, "unknown_identity"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid"
	default:
		return http.StatusInternalServerError, "error"
	}
}
