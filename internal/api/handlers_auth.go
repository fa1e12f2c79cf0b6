// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

package api

import (
	"errors"
	"net/http"

	"github.com/dosentrack/dosentrack/internal/auth"
	"github.com/dosentrack/dosentrack/internal/logging"
	"github.com/dosentrack/dosentrack/internal/models"
	"github.com/dosentrack/dosentrack/internal/store"
	"github.com/dosentrack/dosentrack/internal/validation"
)

type registerRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=64,alphanum"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	DisplayName string `json:"display_name" validate:"required,max=128"`
	Role        string `json:"role" validate:"required,oneof=lecturer student"`
}

// Register creates a new lecturer or student account. Admin accounts
// are provisioned out of band, never through this endpoint.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", nil)
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to process password", err)
		return
	}

	account, err := h.accounts.Create(r.Context(), req.Username, hash, req.DisplayName, models.Role(req.Role))
	if err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			respondError(w, http.StatusConflict, "USERNAME_TAKEN", "username is already registered", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create account", err)
		return
	}

	logging.Info().Str("username", account.Username).Str("role", string(account.Role)).Msg("account registered")
	respondData(w, http.StatusCreated, account)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token   string          `json:"token"`
	Account *models.Account `json:"account"`
}

// Login verifies credentials and issues a JWT.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", nil)
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	account, err := h.accounts.FindByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Same response as a wrong password; usernames are not
			// enumerable through this endpoint.
			respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid username or password", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to look up account", err)
		return
	}

	if !auth.CheckPassword(account.PasswordHash, req.Password) {
		logging.Warn().Str("username", req.Username).Msg("failed login attempt")
		respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid username or password", nil)
		return
	}

	token, err := h.tokens.GenerateToken(account)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to issue token", err)
		return
	}

	respondData(w, http.StatusOK, loginResponse{Token: token, Account: account})
}
