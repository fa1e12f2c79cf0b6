// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

/*
Package websocket carries the real-time connection layer: the hub that
tracks every live connection, the per-connection client with its read
and write goroutines, and the router that maps inbound events onto the
engine.

Architecture:

The package implements a hub-and-spoke pattern over gorilla/websocket:

	┌──────────┐
	│   Hub    │ ← presence transitions, global dosen_status fan-out
	└────┬─────┘
	     │
	┌────┴─────┬─────────┬─────────┐
	│          │         │         │
	│ Client1  │ Client2 │ Client3 │ Client4
	│          │         │         │
	└──────────┴─────────┴─────────┘

Each client has two goroutines:
  - readPump: reads frames, resets the inactivity watchdog, dispatches
  - writePump: drains the buffered send channel, keeps the link alive

A connection's lifecycle is Connecting → Authenticated → Active →
Disconnected. Authentication happens before the upgrade (internal/api);
registration with the hub marks the connection Active and feeds the
presence registry. Disconnection, whether from transport closure or the
lecturer inactivity watchdog, unregisters the client, removes it from
every room, and feeds the presence registry again. Only the transitions
the registry reports (first connection online, last connection offline)
produce a global dosen_status broadcast.

Inbound events for a single connection are processed in receipt order on
its read goroutine. Targeted deliveries to a closed connection are
silent no-ops; room broadcasts treat a full or closed send buffer as an
at-most-once drop.
*/
package websocket
