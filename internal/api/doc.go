// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

// Package api provides HTTP routing and handlers: account registration
// and login, the lecturer directory, the tracking-permission workflow,
// read access to persisted locations and movement history, and the
// WebSocket entry point into the real-time engine.
//
// Routing uses chi with go-chi/cors and go-chi/httprate; every response
// body is the APIResponse envelope. The WebSocket handler authenticates
// the request before the protocol upgrade, so an invalid credential
// never reaches the engine.
package api
