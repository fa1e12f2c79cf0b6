// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

package websocket

import (
	"context"
	"errors"
	"time"

	"github.com/dosentrack/dosentrack/internal/geofence"
	"github.com/dosentrack/dosentrack/internal/logging"
	"github.com/dosentrack/dosentrack/internal/metrics"
	"github.com/dosentrack/dosentrack/internal/models"
	"github.com/dosentrack/dosentrack/internal/pipeline"
	"github.com/dosentrack/dosentrack/internal/presence"
	"github.com/dosentrack/dosentrack/internal/rooms"
)

// LatestSource reads the most recent persisted location for the join
// snapshot. Implemented by store.LocationStore.
type LatestSource interface {
	Latest(ctx context.Context, ownerID string) (*models.PersistedLocation, error)
}

// Router maps inbound events onto the engine. One router is shared by
// all connections; per-connection ordering comes from each client's
// read goroutine, not from the router.
type Router struct {
	pipe      *pipeline.Pipeline
	rooms     *rooms.Manager
	presence  *presence.Registry
	locations LatestSource
	geo       *geofence.Engine
}

// NewRouter assembles the event router.
func NewRouter(pipe *pipeline.Pipeline, roomMgr *rooms.Manager, registry *presence.Registry, locations LatestSource, geo *geofence.Engine) *Router {
	return &Router{
		pipe:      pipe,
		rooms:     roomMgr,
		presence:  registry,
		locations: locations,
		geo:       geo,
	}
}

// Dispatch handles one inbound event for a connection. Every failure
// here is recoverable at single-connection granularity: an error frame
// goes back to the sender and nothing disconnects.
func (r *Router) Dispatch(ctx context.Context, c *Client, env Envelope) {
	metrics.MessagesReceived.WithLabelValues(env.Type).Inc()

	switch env.Type {
	case models.EventUpdateLocation:
		r.handleUpdateLocation(ctx, c, env)
	case models.EventJoinDosenRoom:
		r.handleJoin(ctx, c, env)
	case models.EventLeaveDosenRoom:
		r.handleLeave(c, env)
	case models.EventPing:
		c.Deliver(models.EventPong, nil)
	default:
		c.deliverError(&ValidationError{Field: "type", Detail: "is not a known event"})
	}
}

func (r *Router) handleUpdateLocation(ctx context.Context, c *Client, env Envelope) {
	if c.identity.Role != models.RoleLecturer {
		c.Deliver(models.EventError, models.WireError{Message: "only lecturers may publish locations"})
		return
	}

	lat, lon, err := decodeLocation(env.Data)
	if err != nil {
		c.deliverError(err)
		return
	}

	processed := r.pipe.HandleSample(ctx, c.identity, lat, lon)
	c.Deliver(models.EventLocationUpdated, models.LocationAck{Success: true, Processed: processed})
}

func (r *Router) handleJoin(ctx context.Context, c *Client, env Envelope) {
	ownerID, err := decodeRoom(env.Data)
	if err != nil {
		c.deliverError(err)
		return
	}

	if err := r.rooms.Join(ctx, ownerID, c); err != nil {
		outcome, message := joinFailure(err)
		metrics.RoomJoins.WithLabelValues(outcome).Inc()
		if outcome == "error" {
			logging.Err(err).Str("dosen_id", ownerID).Msg("room join failed")
		}
		c.Deliver(models.EventError, models.WireError{Message: message})
		return
	}

	metrics.RoomJoins.WithLabelValues("joined").Inc()
	c.Deliver(models.EventRoomJoined, models.RoomJoined{DosenID: ownerID, Room: roomName(ownerID)})

	r.deliverSnapshot(ctx, c, ownerID)
}

// deliverSnapshot sends the one-time room snapshot to the joining
// connection only: the owner's online status and, when online, the
// most recent persisted location.
func (r *Router) deliverSnapshot(ctx context.Context, c *Client, ownerID string) {
	online := r.presence.IsOnline(ownerID)
	c.Deliver(models.EventDosenStatus, models.StatusChange{DosenID: ownerID, IsOnline: online})
	if !online {
		return
	}

	loc, err := r.locations.Latest(ctx, ownerID)
	if err != nil {
		// Store failure: the snapshot degrades to status only and the
		// join still succeeds; live broadcasts follow.
		logging.Err(err).Str("dosen_id", ownerID).Msg("latest location read failed during join snapshot")
		return
	}
	if loc == nil {
		// No stored sample yet.
		return
	}
	c.Deliver(models.EventDosenMoved, models.Movement{
		DosenID:      loc.OwnerID,
		Latitude:     loc.Latitude,
		Longitude:    loc.Longitude,
		PositionName: loc.ZoneName,
		IsInside:     loc.ZoneName != r.geo.MaskedZoneName(),
		LastUpdated:  loc.UpdatedAt.Format(time.RFC3339),
	})
}

func (r *Router) handleLeave(c *Client, env Envelope) {
	ownerID, err := decodeRoom(env.Data)
	if err != nil {
		c.deliverError(err)
		return
	}
	r.rooms.Leave(ownerID, c)
}

// joinFailure maps a room join error to a metrics outcome and a wire
// message.
func joinFailure(err error) (outcome, message string) {
	switch {
	case errors.Is(err, rooms.ErrNotStudent):
		return "not_student", "only students may join a tracking room"
	case errors.Is(err, rooms.ErrNotApproved):
		return "not_approved", "tracking permission not approved"
	case errors.Is(err, rooms.ErrUnknownOwner):
		return "unknown_owner", "unknown lecturer id"
	default:
		return "error", "room join failed"
	}
}

// roomName derives the public room identifier from the owner id.
func roomName(ownerID string) string {
	return "dosen:" + ownerID
}
