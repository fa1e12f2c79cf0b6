// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dosentrack/dosentrack/internal/models"
	"github.com/dosentrack/dosentrack/internal/store"
)

// ListLecturers returns the lecturer directory.
func (h *Handler) ListLecturers(w http.ResponseWriter, r *http.Request) {
	lecturers, err := h.accounts.ListLecturers(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list lecturers", err)
		return
	}
	if lecturers == nil {
		lecturers = []*models.Account{}
	}
	respondData(w, http.StatusOK, lecturers)
}

// LecturerLocation returns the latest persisted location for a
// lecturer. The caller must hold an approved tracking permission;
// location data is no more public over REST than over the socket.
func (h *Handler) LecturerLocation(w http.ResponseWriter, r *http.Request) {
	lecturerID := chi.URLParam(r, "id")
	if !h.authorizeTracking(w, r, lecturerID) {
		return
	}

	loc, err := h.locations.Latest(r.Context(), lecturerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "no location recorded for this lecturer", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to read location", err)
		return
	}
	respondData(w, http.StatusOK, loc)
}

// LecturerHistory returns the lecturer's movement history for one
// calendar date (query parameter "date", default today).
func (h *Handler) LecturerHistory(w http.ResponseWriter, r *http.Request) {
	lecturerID := chi.URLParam(r, "id")
	if !h.authorizeTracking(w, r, lecturerID) {
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format(models.DateLayout)
	} else if _, err := time.Parse(models.DateLayout, date); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "date must be formatted YYYY-MM-DD", nil)
		return
	}

	records, err := h.history.List(r.Context(), lecturerID, date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to read history", err)
		return
	}
	if records == nil {
		records = []*models.HistoryRecord{}
	}
	respondData(w, http.StatusOK, records)
}

// authorizeTracking enforces read access to a lecturer's location
// data: the lecturer themselves, an admin, or a student holding an
// approved permission. Writes an error response and returns false when
// access is denied.
func (h *Handler) authorizeTracking(w http.ResponseWriter, r *http.Request, lecturerID string) bool {
	claims := h.mustClaims(w, r)
	if claims == nil {
		return false
	}
	if claims.UserID == lecturerID || claims.Role == string(models.RoleAdmin) {
		return true
	}

	approved, err := h.permissions.HasApproved(r.Context(), claims.UserID, lecturerID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to check permission", err)
		return false
	}
	if !approved {
		respondError(w, http.StatusForbidden, "NOT_APPROVED", "tracking permission not approved", nil)
		return false
	}
	return true
}
