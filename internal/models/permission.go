// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

package models

import "time"

// PermissionStatus is the lifecycle state of a tracking permission.
type PermissionStatus string

const (
	PermissionPending  PermissionStatus = "pending"
	PermissionApproved PermissionStatus = "approved"
	PermissionRejected PermissionStatus = "rejected"
	PermissionRevoked  PermissionStatus = "revoked"
)

// TrackingPermission records a student's request to follow a lecturer's
// location stream. The broadcast engine only ever reads the approved
// state; the request/approve/reject/revoke workflow is plain CRUD.
type TrackingPermission struct {
	ID         string           `json:"id"`
	StudentID  string           `json:"student_id"`
	LecturerID string           `json:"dosen_id"`
	Status     PermissionStatus `json:"status"`
	Reason     string           `json:"reason,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	DecidedAt  *time.Time       `json:"decided_at,omitempty"`
}
