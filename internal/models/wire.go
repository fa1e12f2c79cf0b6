// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

package models

// WebSocket event names. Inbound events come from clients; outbound
// events are produced by the engine. The dosen_* names are part of the
// public wire contract and must not be renamed.
const (
	// Inbound
	EventUpdateLocation = "update_location"
	EventJoinDosenRoom  = "join_dosen_room"
	EventLeaveDosenRoom = "leave_dosen_room"
	EventPing           = "ping"

	// Outbound
	EventDosenMoved      = "dosen_moved"
	EventDosenStatus     = "dosen_status"
	EventRoomJoined      = "room_joined"
	EventLocationUpdated = "location_updated"
	EventError           = "error"
	EventPong            = "pong"
)

// Movement is the dosen_moved payload fanned out to a lecturer's room
// on every accepted sample, and echoed back to the sender inside the
// location_updated acknowledgment.
type Movement struct {
	DosenID      string  `json:"dosen_id"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	PositionName string  `json:"position_name"`
	IsInside     bool    `json:"is_inside"`
	LastUpdated  string  `json:"last_updated"`
}

// StatusChange is the dosen_status payload broadcast to every
// connection when an identity transitions between online and offline.
// Status is public, unlike movement, so it is not room-scoped.
type StatusChange struct {
	DosenID  string `json:"dosen_id"`
	IsOnline bool   `json:"is_online"`
}

// RoomJoined acknowledges a successful join to the subscriber.
type RoomJoined struct {
	DosenID string `json:"dosen_id"`
	Room    string `json:"room"`
}

// LocationAck acknowledges a processed update_location to the sender.
type LocationAck struct {
	Success   bool     `json:"success"`
	Processed Movement `json:"processed"`
}

// WireError carries a recoverable error to a single connection.
type WireError struct {
	Message string `json:"message"`
}
