// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

// Package metrics exposes Prometheus collectors for the broadcast
// engine. Collectors are registered at package load via promauto and
// served on /metrics by the HTTP router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebSocket connection lifecycle
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dosentrack_websocket_connections",
			Help: "Current number of live WebSocket connections",
		},
	)

	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dosentrack_auth_failures_total",
			Help: "Connection authentication failures by reason",
		},
		[]string{"reason"}, // "missing", "invalid", "expired", "unknown_identity"
	)

	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dosentrack_messages_received_total",
			Help: "Inbound WebSocket messages by event type",
		},
		[]string{"event"},
	)

	InactivityDisconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dosentrack_inactivity_disconnects_total",
			Help: "Lecturer connections closed by the inactivity watchdog",
		},
	)

	// Presence
	PresenceTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dosentrack_presence_transitions_total",
			Help: "Identity online/offline transitions",
		},
		[]string{"direction"}, // "online", "offline"
	)

	IdentitiesOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dosentrack_identities_online",
			Help: "Identities with at least one live connection",
		},
	)

	// Rooms
	RoomJoins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dosentrack_room_joins_total",
			Help: "Room join attempts by outcome",
		},
		[]string{"outcome"}, // "joined", "not_approved", "wrong_role", "unknown_owner", "error"
	)

	RoomEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dosentrack_room_evictions_total",
			Help: "Live memberships removed by permission revocation",
		},
	)

	// Broadcast pipeline
	BroadcastsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dosentrack_broadcasts_delivered_total",
			Help: "dosen_moved payloads delivered to room members",
		},
	)

	BroadcastsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dosentrack_broadcasts_dropped_total",
			Help: "dosen_moved payloads dropped due to full or closed member buffers",
		},
	)

	PersistenceWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dosentrack_persistence_writes_total",
			Help: "Latest-location persistence decisions",
		},
		[]string{"outcome"}, // "written", "throttled", "error"
	)

	HistoryDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dosentrack_history_decisions_total",
			Help: "History append decisions by reason",
		},
		[]string{"reason"}, // "first_of_day", "zone_change", "interval_elapsed", "throttled", "out_of_zone", "error"
	)

	StoreBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dosentrack_store_breaker_open",
			Help: "1 when the store-write circuit breaker is open, 0 otherwise",
		},
	)
)
