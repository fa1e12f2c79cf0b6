// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/dosentrack/dosentrack/internal/logging"
	"github.com/dosentrack/dosentrack/internal/metrics"
	"github.com/dosentrack/dosentrack/internal/models"
	"github.com/dosentrack/dosentrack/internal/presence"
	"github.com/dosentrack/dosentrack/internal/rooms"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown
	// path (SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was
	// exceeded and may point at a hung shutdown step.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Hub maintains the set of active clients, drives the presence
// registry from their lifecycle, and fans global status broadcasts out
// to every connection.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	presence   *presence.Registry
	rooms      *rooms.Manager
	mu         sync.RWMutex
}

// NewHub creates a hub over the given presence registry and room
// manager.
func NewHub(registry *presence.Registry, roomMgr *rooms.Manager) *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		presence:   registry,
		rooms:      roomMgr,
	}
}

// Run starts the hub (blocks forever, no context support).
//
// Deprecated: Use RunWithContext for supervised operation.
//
// Uses priority-based selection: client lifecycle events before
// broadcast messages, so client state is consistent before any message
// is fanned out. Go's select picks randomly among ready channels; the
// two-stage select removes that nondeterminism.
func (h *Hub) Run() {
	for {
		// Priority 1: lifecycle events (non-blocking check)
		select {
		case client := <-h.Register:
			h.registerClient(client)
			continue
		case client := <-h.Unregister:
			h.unregisterClient(client)
			continue
		default:
		}

		// Priority 2: broadcasts (blocking wait)
		select {
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// RunWithContext starts the hub with context support for graceful
// shutdown. Designed for use under suture supervision: when the
// context is canceled every connected client is closed and the method
// returns ctx.Err(), so a supervisor restart never leaks connections.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Priority 1: shutdown (non-blocking check)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: lifecycle events (non-blocking check)
		select {
		case client := <-h.Register:
			h.registerClient(client)
			continue
		case client := <-h.Unregister:
			h.unregisterClient(client)
			continue
		default:
		}

		// Priority 3: broadcasts, or wait for any event (blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// registerClient marks the connection Active: it joins the client set,
// feeds the presence registry, and broadcasts a status change if this
// was the identity's first live connection.
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.ActiveConnections.Set(float64(total))

	transition := h.presence.Connect(client.identity.ID, client.id)
	if transition == presence.TransitionOnline {
		metrics.PresenceTransitions.WithLabelValues("online").Inc()
		metrics.IdentitiesOnline.Set(float64(h.presence.OnlineCount()))
		h.announceStatus(client.identity, true)
	}

	logging.Info().
		Str("identity_id", client.identity.ID).
		Str("role", string(client.identity.Role)).
		Int("total_clients", total).
		Msg("websocket client connected")
}

// unregisterClient marks the connection Disconnected: it leaves the
// client set and every room, stops the inactivity watchdog, feeds the
// presence registry, and broadcasts a status change if this was the
// identity's last live connection.
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	total := len(h.clients)
	h.mu.Unlock()

	metrics.ActiveConnections.Set(float64(total))

	if h.detachClient(client) == presence.TransitionOffline {
		metrics.IdentitiesOnline.Set(float64(h.presence.OnlineCount()))
		h.announceStatus(client.identity, false)
	}

	logging.Info().
		Str("identity_id", client.identity.ID).
		Int("total_clients", total).
		Msg("websocket client disconnected")
}

// detachClient tears down one connection's engine state: deliveries
// stop, room memberships go away, and the presence registry records the
// disconnect with its transition accounting. Returns the transition so
// the caller can decide whether to announce it.
func (h *Hub) detachClient(client *Client) presence.Transition {
	client.shutdown()
	h.rooms.LeaveAll(client)

	transition := h.presence.Disconnect(client.identity.ID, client.id)
	if transition == presence.TransitionOffline {
		metrics.PresenceTransitions.WithLabelValues("offline").Inc()
	}
	return transition
}

// announceStatus queues a global dosen_status broadcast for a lecturer
// presence transition. Student transitions update the registry but are
// not announced; only lecturer availability is public.
func (h *Hub) announceStatus(identity models.Identity, online bool) {
	if identity.Role != models.RoleLecturer {
		return
	}

	message := Message{
		Type: models.EventDosenStatus,
		Data: models.StatusChange{DosenID: identity.ID, IsOnline: online},
	}

	select {
	case h.broadcast <- message:
	default:
		logging.Warn().Str("dosen_id", identity.ID).Msg("broadcast channel full, dropping dosen_status")
	}
}

// broadcastToClients sends a message to every connected client in a
// deterministic order. Clients are sorted by id so delivery order is
// reproducible in tests; a client with a full or closed send buffer is
// skipped, not removed, since its own pumps manage its lifecycle.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		if !client.enqueue(message) {
			metrics.BroadcastsDropped.Inc()
		}
	}
}

// logGracefulShutdown closes every client and logs structured shutdown
// information. ctx.Err() is not logged as an error; cancellation is the
// expected shutdown trigger.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// closeAllClients closes all connected clients in id order.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		h.detachClient(client)
	}
	metrics.ActiveConnections.Set(0)
	metrics.IdentitiesOnline.Set(float64(h.presence.OnlineCount()))
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
