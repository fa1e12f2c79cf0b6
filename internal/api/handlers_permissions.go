// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dosentrack/dosentrack/internal/auth"
	"github.com/dosentrack/dosentrack/internal/logging"
	"github.com/dosentrack/dosentrack/internal/models"
	"github.com/dosentrack/dosentrack/internal/store"
	"github.com/dosentrack/dosentrack/internal/validation"
)

// mustClaims returns the authenticated claims or writes a 401. A nil
// result means the response has already been written.
func (h *Handler) mustClaims(w http.ResponseWriter, r *http.Request) *auth.Claims {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
	}
	return claims
}

type permissionRequest struct {
	DosenID string `json:"dosen_id" validate:"required"`
	Reason  string `json:"reason" validate:"max=500"`
}

// RequestPermission creates a pending tracking request from the
// authenticated student to a lecturer.
func (h *Handler) RequestPermission(w http.ResponseWriter, r *http.Request) {
	claims := h.mustClaims(w, r)
	if claims == nil {
		return
	}
	if claims.Role != string(models.RoleStudent) {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "only students may request tracking permission", nil)
		return
	}

	var req permissionRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", nil)
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	isLecturer, err := h.accounts.IsLecturer(r.Context(), req.DosenID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to resolve lecturer", err)
		return
	}
	if !isLecturer {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown lecturer id", nil)
		return
	}

	perm, err := h.permissions.Request(r.Context(), claims.UserID, req.DosenID, req.Reason)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateRequest) {
			respondError(w, http.StatusConflict, "DUPLICATE_REQUEST", "a pending or approved request already exists", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create request", err)
		return
	}

	logging.Info().
		Str("student_id", claims.UserID).
		Str("dosen_id", req.DosenID).
		Msg("tracking permission requested")
	respondData(w, http.StatusCreated, perm)
}

// ListPermissions returns the authenticated user's view of the
// workflow: students see the requests they created, lecturers the
// requests addressed to them.
func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	claims := h.mustClaims(w, r)
	if claims == nil {
		return
	}

	var (
		perms []*models.TrackingPermission
		err   error
	)
	switch claims.Role {
	case string(models.RoleLecturer):
		perms, err = h.permissions.ListForLecturer(r.Context(), claims.UserID)
	case string(models.RoleStudent):
		perms, err = h.permissions.ListForStudent(r.Context(), claims.UserID)
	default:
		respondError(w, http.StatusForbidden, "FORBIDDEN", "no permission view for this role", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list permissions", err)
		return
	}
	if perms == nil {
		perms = []*models.TrackingPermission{}
	}
	respondData(w, http.StatusOK, perms)
}

// ApprovePermission moves a pending request to approved.
func (h *Handler) ApprovePermission(w http.ResponseWriter, r *http.Request) {
	h.decidePermission(w, r, "approve")
}

// RejectPermission moves a pending request to rejected.
func (h *Handler) RejectPermission(w http.ResponseWriter, r *http.Request) {
	h.decidePermission(w, r, "reject")
}

// RevokePermission withdraws an approved permission. Live room
// memberships under the pair are evicted through the store's
// revocation observers.
func (h *Handler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	h.decidePermission(w, r, "revoke")
}

func (h *Handler) decidePermission(w http.ResponseWriter, r *http.Request, action string) {
	claims := h.mustClaims(w, r)
	if claims == nil {
		return
	}

	id := chi.URLParam(r, "id")
	perm, err := h.permissions.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown permission id", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load permission", err)
		return
	}

	// Only the addressed lecturer (or an admin) decides.
	if perm.LecturerID != claims.UserID && claims.Role != string(models.RoleAdmin) {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "only the addressed lecturer may decide this request", nil)
		return
	}

	switch action {
	case "approve":
		err = h.permissions.Approve(r.Context(), id)
	case "reject":
		err = h.permissions.Reject(r.Context(), id)
	case "revoke":
		err = h.permissions.Revoke(r.Context(), id)
	}
	if err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			respondError(w, http.StatusConflict, "INVALID_TRANSITION", "request is not in a state that allows this decision", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to update permission", err)
		return
	}

	updated, err := h.permissions.FindByID(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to reload permission", err)
		return
	}

	logging.Info().
		Str("permission_id", id).
		Str("action", action).
		Msg("tracking permission decided")
	respondData(w, http.StatusOK, updated)
}
