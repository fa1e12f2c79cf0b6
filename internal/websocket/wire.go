// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

package websocket

import (
	"errors"
	"fmt"
	"math"

	"github.com/goccy/go-json"
)

// Message is one outbound WebSocket frame.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Envelope is one inbound WebSocket frame with its payload still raw.
// Payloads are decoded per event type in this file; nothing past this
// boundary sees unvalidated client input.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ErrMalformedFrame is returned when a frame is not a valid envelope.
var ErrMalformedFrame = errors.New("malformed frame")

// ValidationError reports a structurally valid frame whose payload
// fails validation. It is sent back to the offending connection as an
// error event and never mutates engine state.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload: %s %s", e.Field, e.Detail)
}

// ParseEnvelope decodes one raw inbound frame.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Type == "" {
		return Envelope{}, &ValidationError{Field: "type", Detail: "is required"}
	}
	return env, nil
}

// locationPayload accepts both the canonical field names and the
// abbreviated aliases some clients send. Pointers distinguish a missing
// field from a literal zero.
type locationPayload struct {
	Latitude  *float64 `json:"latitude"`
	Lat       *float64 `json:"lat"`
	Longitude *float64 `json:"longitude"`
	Long      *float64 `json:"long"`
}

// decodeLocation normalizes an update_location payload to a single
// (latitude, longitude) pair. The canonical name wins when both it and
// its alias are present.
func decodeLocation(data json.RawMessage) (float64, float64, error) {
	var p locationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, 0, &ValidationError{Field: "data", Detail: "is not a location payload"}
	}

	lat := p.Latitude
	if lat == nil {
		lat = p.Lat
	}
	lon := p.Longitude
	if lon == nil {
		lon = p.Long
	}

	if lat == nil {
		return 0, 0, &ValidationError{Field: "latitude", Detail: "is required"}
	}
	if lon == nil {
		return 0, 0, &ValidationError{Field: "longitude", Detail: "is required"}
	}
	if math.IsNaN(*lat) || math.IsInf(*lat, 0) || *lat < -90 || *lat > 90 {
		return 0, 0, &ValidationError{Field: "latitude", Detail: "must be a finite value in [-90, 90]"}
	}
	if math.IsNaN(*lon) || math.IsInf(*lon, 0) || *lon < -180 || *lon > 180 {
		return 0, 0, &ValidationError{Field: "longitude", Detail: "must be a finite value in [-180, 180]"}
	}
	return *lat, *lon, nil
}

type roomPayload struct {
	DosenID string `json:"dosen_id"`
}

// decodeRoom extracts the room owner id from a join or leave payload.
func decodeRoom(data json.RawMessage) (string, error) {
	var p roomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return "", &ValidationError{Field: "data", Detail: "is not a room payload"}
	}
	if p.DosenID == "" {
		return "", &ValidationError{Field: "dosen_id", Detail: "is required"}
	}
	return p.DosenID, nil
}
