// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

package websocket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/dosentrack/dosentrack/internal/geofence"
	"github.com/dosentrack/dosentrack/internal/history"
	"github.com/dosentrack/dosentrack/internal/models"
	"github.com/dosentrack/dosentrack/internal/pipeline"
	"github.com/dosentrack/dosentrack/internal/presence"
	"github.com/dosentrack/dosentrack/internal/rooms"
)

const (
	campusLat = -3.219741
	campusLon = 104.651220
)

type memLocations struct {
	mu sync.Mutex
	m  map[string]*models.PersistedLocation
}

func newMemLocations() *memLocations {
	return &memLocations{m: make(map[string]*models.PersistedLocation)}
}

func (s *memLocations) Upsert(_ context.Context, loc *models.PersistedLocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[loc.OwnerID] = loc
	return nil
}

func (s *memLocations) Latest(_ context.Context, ownerID string) (*models.PersistedLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc, ok := s.m[ownerID]
	if !ok {
		return nil, nil
	}
	return loc, nil
}

type memHistory struct {
	mu   sync.Mutex
	recs []*models.HistoryRecord
}

func (s *memHistory) MostRecent(_ context.Context, ownerID string, dayOfWeek int, date string) (*models.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.recs) - 1; i >= 0; i-- {
		r := s.recs[i]
		if r.OwnerID == ownerID && r.DayOfWeek == dayOfWeek && r.CalendarDate == date {
			return r, nil
		}
	}
	return nil, nil
}

func (s *memHistory) Append(_ context.Context, rec *models.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

type routerFixture struct {
	router    *Router
	pipe      *pipeline.Pipeline
	rooms     *rooms.Manager
	registry  *presence.Registry
	locations *memLocations
	perms     *fakePermissions
}

func newRouterFixture(t *testing.T, lecturerIDs ...string) *routerFixture {
	t.Helper()

	dir := &fakeDirectory{lecturers: make(map[string]bool)}
	for _, id := range lecturerIDs {
		dir.lecturers[id] = true
	}

	geo := geofence.NewEngine(
		[]geofence.Zone{{Name: "Campus A", Latitude: campusLat, Longitude: campusLon, RadiusKm: 0.5}},
		-2.990934, 104.756554, "Outside",
	)
	perms := &fakePermissions{allow: true}
	roomMgr := rooms.NewManager(perms, dir)
	registry := presence.NewRegistry()
	locations := newMemLocations()
	historian := history.NewLogger(&memHistory{}, time.Hour)
	pipe := pipeline.New(geo, roomMgr, historian, locations, pipeline.DefaultConfig())

	return &routerFixture{
		router:    NewRouter(pipe, roomMgr, registry, locations, geo),
		pipe:      pipe,
		rooms:     roomMgr,
		registry:  registry,
		locations: locations,
		perms:     perms,
	}
}

func envelope(t *testing.T, eventType, payload string) Envelope {
	t.Helper()
	return Envelope{Type: eventType, Data: json.RawMessage(payload)}
}

func TestDispatchPing(t *testing.T) {
	f := newRouterFixture(t)
	client := createTestClient(nil, studentIdentity("S1"))

	f.router.Dispatch(context.Background(), client, Envelope{Type: models.EventPing})

	waitMessage(t, client, models.EventPong)
}

func TestDispatchUnknownEvent(t *testing.T) {
	f := newRouterFixture(t)
	client := createTestClient(nil, studentIdentity("S1"))

	f.router.Dispatch(context.Background(), client, Envelope{Type: "resync_everything"})

	waitMessage(t, client, models.EventError)
}

func TestUpdateLocationFromStudentRejected(t *testing.T) {
	f := newRouterFixture(t, "L1")
	student := createTestClient(nil, studentIdentity("S1"))

	f.router.Dispatch(context.Background(), student,
		envelope(t, models.EventUpdateLocation, `{"latitude":-3.2,"longitude":104.6}`))

	msg := waitMessage(t, student, models.EventError)
	if wireErr := msg.Data.(models.WireError); wireErr.Message == "" {
		t.Fatal("error frame has no message")
	}
}

func TestUpdateLocationBroadcastsAndAcks(t *testing.T) {
	f := newRouterFixture(t, "L1")
	ctx := context.Background()

	lecturer := createTestClient(nil, lecturerIdentity("L1"))
	member := createTestClient(nil, studentIdentity("S1"))
	if err := f.rooms.Join(ctx, "L1", member); err != nil {
		t.Fatalf("join: %v", err)
	}

	f.router.Dispatch(ctx, lecturer,
		envelope(t, models.EventUpdateLocation, `{"lat":-3.219741,"long":104.651220}`))

	moved := waitMessage(t, member, models.EventDosenMoved)
	movement := moved.Data.(models.Movement)
	if movement.DosenID != "L1" || !movement.IsInside || movement.PositionName != "Campus A" {
		t.Fatalf("broadcast payload = %+v", movement)
	}
	if movement.Latitude != campusLat || movement.Longitude != campusLon {
		t.Fatalf("in-zone broadcast must carry raw coordinates, got %+v", movement)
	}

	ack := waitMessage(t, lecturer, models.EventLocationUpdated)
	locationAck := ack.Data.(models.LocationAck)
	if !locationAck.Success {
		t.Fatal("acknowledgment not successful")
	}
	if locationAck.Processed != movement {
		t.Fatalf("ack payload %+v differs from broadcast %+v", locationAck.Processed, movement)
	}

	f.pipe.Wait()
	loc, err := f.locations.Latest(ctx, "L1")
	if err != nil || loc == nil {
		t.Fatalf("Latest after sample = (%+v, %v)", loc, err)
	}
}

func TestMalformedLocationLeavesStateUntouched(t *testing.T) {
	f := newRouterFixture(t, "L1")
	ctx := context.Background()

	lecturer := createTestClient(nil, lecturerIdentity("L1"))
	member := createTestClient(nil, studentIdentity("S1"))
	if err := f.rooms.Join(ctx, "L1", member); err != nil {
		t.Fatalf("join: %v", err)
	}

	f.router.Dispatch(ctx, lecturer,
		envelope(t, models.EventUpdateLocation, `{"longitude":104.6}`))

	waitMessage(t, lecturer, models.EventError)
	assertNoMessage(t, member)

	f.pipe.Wait()
	if loc, _ := f.locations.Latest(ctx, "L1"); loc != nil {
		t.Fatalf("malformed payload persisted a location: %+v", loc)
	}
}

func TestJoinRoomSnapshotOwnerOffline(t *testing.T) {
	f := newRouterFixture(t, "L1")
	student := createTestClient(nil, studentIdentity("S1"))

	f.router.Dispatch(context.Background(), student,
		envelope(t, models.EventJoinDosenRoom, `{"dosen_id":"L1"}`))

	joined := waitMessage(t, student, models.EventRoomJoined)
	roomJoined := joined.Data.(models.RoomJoined)
	if roomJoined.DosenID != "L1" || roomJoined.Room != "dosen:L1" {
		t.Fatalf("room_joined = %+v", roomJoined)
	}

	status := waitMessage(t, student, models.EventDosenStatus)
	if statusChange := status.Data.(models.StatusChange); statusChange.IsOnline {
		t.Fatalf("snapshot status = %+v, want offline", statusChange)
	}

	// Owner offline: the snapshot carries no location.
	assertNoMessage(t, student)
}

func TestJoinRoomSnapshotOwnerOnline(t *testing.T) {
	f := newRouterFixture(t, "L1")
	ctx := context.Background()

	f.registry.Connect("L1", "conn-1")
	stored := &models.PersistedLocation{
		OwnerID:   "L1",
		Latitude:  campusLat,
		Longitude: campusLon,
		ZoneName:  "Campus A",
		UpdatedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	if err := f.locations.Upsert(ctx, stored); err != nil {
		t.Fatalf("seed location: %v", err)
	}

	student := createTestClient(nil, studentIdentity("S1"))
	f.router.Dispatch(ctx, student,
		envelope(t, models.EventJoinDosenRoom, `{"dosen_id":"L1"}`))

	waitMessage(t, student, models.EventRoomJoined)

	status := waitMessage(t, student, models.EventDosenStatus)
	if statusChange := status.Data.(models.StatusChange); !statusChange.IsOnline {
		t.Fatalf("snapshot status = %+v, want online", statusChange)
	}

	moved := waitMessage(t, student, models.EventDosenMoved)
	movement := moved.Data.(models.Movement)
	if movement.PositionName != "Campus A" || !movement.IsInside {
		t.Fatalf("snapshot movement = %+v", movement)
	}
}

// failingLocations simulates an unavailable location store.
type failingLocations struct{}

func (failingLocations) Latest(context.Context, string) (*models.PersistedLocation, error) {
	return nil, errors.New("store offline")
}

func TestJoinSnapshotDegradesOnStoreFailure(t *testing.T) {
	f := newRouterFixture(t, "L1")
	f.router.locations = failingLocations{}
	ctx := context.Background()

	f.registry.Connect("L1", "conn-1")

	student := createTestClient(nil, studentIdentity("S1"))
	f.router.Dispatch(ctx, student,
		envelope(t, models.EventJoinDosenRoom, `{"dosen_id":"L1"}`))

	// The join succeeds and the snapshot degrades to status only.
	waitMessage(t, student, models.EventRoomJoined)
	status := waitMessage(t, student, models.EventDosenStatus)
	if statusChange := status.Data.(models.StatusChange); !statusChange.IsOnline {
		t.Fatalf("snapshot status = %+v, want online", statusChange)
	}
	assertNoMessage(t, student)

	if got := f.rooms.MemberCount("L1"); got != 1 {
		t.Errorf("membership after degraded snapshot = %d, want 1", got)
	}
}

func TestJoinWithoutApproval(t *testing.T) {
	f := newRouterFixture(t, "L1")
	f.perms.allow = false

	student := createTestClient(nil, studentIdentity("S1"))
	f.router.Dispatch(context.Background(), student,
		envelope(t, models.EventJoinDosenRoom, `{"dosen_id":"L1"}`))

	msg := waitMessage(t, student, models.EventError)
	if wireErr := msg.Data.(models.WireError); wireErr.Message != "tracking permission not approved" {
		t.Fatalf("error message = %q", wireErr.Message)
	}
	if f.rooms.MemberCount("L1") != 0 {
		t.Fatal("failed join must not create membership")
	}
}

func TestJoinUnknownOwner(t *testing.T) {
	f := newRouterFixture(t, "L1")

	student := createTestClient(nil, studentIdentity("S1"))
	f.router.Dispatch(context.Background(), student,
		envelope(t, models.EventJoinDosenRoom, `{"dosen_id":"nobody"}`))

	msg := waitMessage(t, student, models.EventError)
	if wireErr := msg.Data.(models.WireError); wireErr.Message != "unknown lecturer id" {
		t.Fatalf("error message = %q", wireErr.Message)
	}
}

func TestJoinFromLecturerRejected(t *testing.T) {
	f := newRouterFixture(t, "L1", "L2")

	lecturer := createTestClient(nil, lecturerIdentity("L2"))
	f.router.Dispatch(context.Background(), lecturer,
		envelope(t, models.EventJoinDosenRoom, `{"dosen_id":"L1"}`))

	msg := waitMessage(t, lecturer, models.EventError)
	if wireErr := msg.Data.(models.WireError); wireErr.Message != "only students may join a tracking room" {
		t.Fatalf("error message = %q", wireErr.Message)
	}
}

func TestLeaveRoom(t *testing.T) {
	f := newRouterFixture(t, "L1")
	ctx := context.Background()

	student := createTestClient(nil, studentIdentity("S1"))
	if err := f.rooms.Join(ctx, "L1", student); err != nil {
		t.Fatalf("join: %v", err)
	}

	f.router.Dispatch(ctx, student,
		envelope(t, models.EventLeaveDosenRoom, `{"dosen_id":"L1"}`))
	if f.rooms.MemberCount("L1") != 0 {
		t.Fatal("leave did not remove membership")
	}

	// Leaving again is a silent no-op.
	f.router.Dispatch(ctx, student,
		envelope(t, models.EventLeaveDosenRoom, `{"dosen_id":"L1"}`))
	assertNoMessage(t, student)
}
