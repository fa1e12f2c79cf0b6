// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

// Package models contains the core data types shared across the engine.
// Types here are dependency-free: they carry data between the stores,
// the broadcast engine, and the wire protocol without behavior of their own.
package models

import "time"

// Role is the authorization role attached to an identity.
type Role string

const (
	// RoleLecturer identifies a tracked person ("dosen"). Lecturers own
	// rooms and stream location samples.
	RoleLecturer Role = "lecturer"

	// RoleStudent identifies a subscriber ("mahasiswa"). Students join
	// lecturer rooms once a tracking permission is approved.
	RoleStudent Role = "student"

	// RoleAdmin identifies an administrative account. Admins manage
	// accounts and permissions but participate in neither side of the
	// broadcast engine.
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleLecturer, RoleStudent, RoleAdmin:
		return true
	}
	return false
}

// Identity is the resolved, immutable identity of a connection.
// It is derived exactly once from a verified credential at connection
// time and never re-derived per message.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// Account is a stored user account. PasswordHash is a bcrypt hash and
// never leaves the store layer in API responses.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"display_name"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity derives the connection identity from an account.
func (a *Account) Identity() Identity {
	return Identity{
		ID:          a.ID,
		DisplayName: a.DisplayName,
		Role:        a.Role,
	}
}
