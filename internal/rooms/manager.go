// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

// Package rooms maintains, per tracked lecturer, the set of subscriber
// connections that receive that lecturer's movement broadcasts.
//
// Rooms are implicit: a room is keyed by the lecturer's identity id and
// exists exactly as long as it has members. Join is gated on subscriber
// role and on an approved tracking permission read from the permission
// store at join time; a later approval never retroactively grants
// membership, and a revocation actively evicts live members.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dosentrack/dosentrack/internal/models"
)

var (
	// ErrNotStudent is returned when a non-student connection attempts
	// to join a room.
	ErrNotStudent = errors.New("only students may join a tracking room")

	// ErrNotApproved is returned when no approved tracking permission
	// exists between the subscriber and the room owner.
	ErrNotApproved = errors.New("tracking permission not approved")

	// ErrUnknownOwner is returned when the room owner id does not
	// resolve to a lecturer.
	ErrUnknownOwner = errors.New("unknown lecturer id")
)

// Subscriber is a live connection that can receive targeted events.
// Implemented by the websocket client; Deliver reports false when the
// connection is gone or its buffer is full, which members treat as
// at-most-once delivery, never an error.
type Subscriber interface {
	ID() string
	Identity() models.Identity
	Deliver(event string, data any) bool
}

// PermissionChecker reads approval state from the permission store.
type PermissionChecker interface {
	HasApproved(ctx context.Context, studentID, lecturerID string) (bool, error)
}

// Directory resolves whether an identity id refers to a lecturer.
type Directory interface {
	IsLecturer(ctx context.Context, id string) (bool, error)
}

// Manager owns all room membership state. Mutations are serialized by
// a single mutex so that join/leave/broadcast sequences are atomic.
type Manager struct {
	mu          sync.RWMutex
	rooms       map[string]map[string]Subscriber // owner id -> connection id -> subscriber
	permissions PermissionChecker
	directory   Directory
}

// NewManager creates a room manager backed by the given permission
// store and lecturer directory.
func NewManager(permissions PermissionChecker, directory Directory) *Manager {
	return &Manager{
		rooms:       make(map[string]map[string]Subscriber),
		permissions: permissions,
		directory:   directory,
	}
}

// Join adds the subscriber connection to the lecturer's room after
// checking role and approval. On any failure no membership changes.
func (m *Manager) Join(ctx context.Context, ownerID string, sub Subscriber) error {
	if sub.Identity().Role != models.RoleStudent {
		return ErrNotStudent
	}

	isLecturer, err := m.directory.IsLecturer(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("resolve room owner: %w", err)
	}
	if !isLecturer {
		return ErrUnknownOwner
	}

	approved, err := m.permissions.HasApproved(ctx, sub.Identity().ID, ownerID)
	if err != nil {
		return fmt.Errorf("check tracking permission: %w", err)
	}
	if !approved {
		return ErrNotApproved
	}

	m.mu.Lock()
	room, ok := m.rooms[ownerID]
	if !ok {
		room = make(map[string]Subscriber)
		m.rooms[ownerID] = room
	}
	room[sub.ID()] = sub
	m.mu.Unlock()

	// A revocation landing between the approval read above and the
	// insert would find no membership to evict. Re-read approval with
	// the membership already visible: either this read sees the
	// revocation and rolls the insert back, or the revocation's Evict
	// sees the membership. Both orders leave the student out.
	approved, err = m.permissions.HasApproved(ctx, sub.Identity().ID, ownerID)
	if err != nil || !approved {
		m.mu.Lock()
		m.removeLocked(ownerID, sub.ID())
		m.mu.Unlock()
		if err != nil {
			return fmt.Errorf("confirm tracking permission: %w", err)
		}
		return ErrNotApproved
	}
	return nil
}

// Leave removes the subscriber from the room. Unknown room or absent
// membership is a silent no-op.
func (m *Manager) Leave(ownerID string, sub Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(ownerID, sub.ID())
}

// LeaveAll removes the subscriber connection from every room it
// belongs to and returns the affected owner ids. Called on disconnect.
func (m *Manager) LeaveAll(sub Subscriber) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var owners []string
	for ownerID, room := range m.rooms {
		if _, ok := room[sub.ID()]; ok {
			owners = append(owners, ownerID)
			m.removeLocked(ownerID, sub.ID())
		}
	}
	return owners
}

// Evict removes every connection of the given student identity from
// the owner's room and returns the evicted subscribers. Used when a
// tracking permission is revoked while members are live.
func (m *Manager) Evict(ownerID, studentID string) []Subscriber {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[ownerID]
	if !ok {
		return nil
	}

	var evicted []Subscriber
	for connID, sub := range room {
		if sub.Identity().ID == studentID {
			evicted = append(evicted, sub)
			m.removeLocked(ownerID, connID)
		}
	}
	return evicted
}

// Members returns a snapshot of the room's current subscribers.
func (m *Manager) Members(ownerID string) []Subscriber {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room := m.rooms[ownerID]
	members := make([]Subscriber, 0, len(room))
	for _, sub := range room {
		members = append(members, sub)
	}
	return members
}

// MemberCount returns the number of subscribers in the room.
func (m *Manager) MemberCount(ownerID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[ownerID])
}

// Broadcast delivers an event to every current member of the room and
// returns the number of successful deliveries. Delivery is best-effort
// at-most-once: a full or closed member buffer drops that member's
// copy without affecting the others.
func (m *Manager) Broadcast(ownerID, event string, data any) int {
	delivered := 0
	for _, sub := range m.Members(ownerID) {
		if sub.Deliver(event, data) {
			delivered++
		}
	}
	return delivered
}

// removeLocked removes one membership entry; caller holds m.mu.
func (m *Manager) removeLocked(ownerID, connID string) {
	room, ok := m.rooms[ownerID]
	if !ok {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(m.rooms, ownerID)
	}
}
