// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

// Package presence tracks which identities currently hold at least one
// live connection. An identity is online iff its connection set is
// non-empty; only empty/non-empty transitions are reported to callers
// so that status broadcasts fire once per transition, not once per
// connection.
package presence

import "sync"

// Transition describes the effect of a Connect or Disconnect on an
// identity's online status.
type Transition int

const (
	// TransitionNone means the online status did not change.
	TransitionNone Transition = iota

	// TransitionOnline means the identity went from zero connections
	// to one: it just became online.
	TransitionOnline

	// TransitionOffline means the identity's last connection went
	// away: it just became offline.
	TransitionOffline
)

// Registry maps identity ids to their sets of live connection ids.
// All operations are atomic; the zero count invariant cannot be
// violated because removal of an absent connection is a no-op.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[string]struct{}
}

// NewRegistry creates an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]map[string]struct{})}
}

// Connect records a live connection for the identity. Adding the same
// connection id twice is idempotent. Returns TransitionOnline when the
// identity's set went from empty to non-empty.
func (r *Registry) Connect(identityID, connID string) Transition {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[identityID]
	if !ok {
		set = make(map[string]struct{})
		r.conns[identityID] = set
	}

	wasEmpty := len(set) == 0
	set[connID] = struct{}{}

	if wasEmpty {
		return TransitionOnline
	}
	return TransitionNone
}

// Disconnect removes a connection for the identity. Removing an absent
// connection id is a no-op. Returns TransitionOffline when the
// identity's set went from non-empty to empty.
func (r *Registry) Disconnect(identityID, connID string) Transition {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[identityID]
	if !ok {
		return TransitionNone
	}
	if _, present := set[connID]; !present {
		return TransitionNone
	}

	delete(set, connID)
	if len(set) == 0 {
		delete(r.conns, identityID)
		return TransitionOffline
	}
	return TransitionNone
}

// IsOnline reports whether the identity has at least one live connection.
func (r *Registry) IsOnline(identityID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[identityID]) > 0
}

// ConnectionCount returns the number of live connections for the identity.
func (r *Registry) ConnectionCount(identityID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[identityID])
}

// OnlineCount returns the number of identities currently online.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
