// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

package rooms

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dosentrack/dosentrack/internal/models"
)

// fakeSubscriber implements Subscriber with a recording delivery sink.
type fakeSubscriber struct {
	id       string
	identity models.Identity
	events   []string
	closed   bool
}

func (s *fakeSubscriber) ID() string                { return s.id }
func (s *fakeSubscriber) Identity() models.Identity { return s.identity }

func (s *fakeSubscriber) Deliver(event string, _ any) bool {
	if s.closed {
		return false
	}
	s.events = append(s.events, event)
	return true
}

func student(id, connID string) *fakeSubscriber {
	return &fakeSubscriber{
		id:       connID,
		identity: models.Identity{ID: id, DisplayName: id, Role: models.RoleStudent},
	}
}

// fakePermissions approves exactly the configured (student, lecturer) pairs.
type fakePermissions struct {
	approved map[[2]string]bool
	err      error
}

func (p *fakePermissions) HasApproved(_ context.Context, studentID, lecturerID string) (bool, error) {
	if p.err != nil {
		return false, p.err
	}
	return p.approved[[2]string{studentID, lecturerID}], nil
}

// fakeDirectory knows a fixed set of lecturer ids.
type fakeDirectory struct {
	lecturers map[string]bool
}

func (d *fakeDirectory) IsLecturer(_ context.Context, id string) (bool, error) {
	return d.lecturers[id], nil
}

func testManager(approved ...[2]string) *Manager {
	perms := &fakePermissions{approved: map[[2]string]bool{}}
	for _, pair := range approved {
		perms.approved[pair] = true
	}
	dir := &fakeDirectory{lecturers: map[string]bool{"dosen-1": true, "dosen-2": true}}
	return NewManager(perms, dir)
}

func TestJoinApproved(t *testing.T) {
	m := testManager([2]string{"student-1", "dosen-1"})
	s1 := student("student-1", "conn-1")

	if err := m.Join(context.Background(), "dosen-1", s1); err != nil {
		t.Fatalf("approved join failed: %v", err)
	}
	if got := m.MemberCount("dosen-1"); got != 1 {
		t.Errorf("member count = %d, want 1", got)
	}
}

func TestJoinNotApproved(t *testing.T) {
	m := testManager()
	s2 := student("student-2", "conn-2")

	err := m.Join(context.Background(), "dosen-1", s2)
	if !errors.Is(err, ErrNotApproved) {
		t.Fatalf("join without approval = %v, want ErrNotApproved", err)
	}
	if got := m.MemberCount("dosen-1"); got != 0 {
		t.Errorf("rejected join must not create membership, count = %d", got)
	}
}

func TestJoinWrongRole(t *testing.T) {
	m := testManager([2]string{"lect-2", "dosen-1"})
	lecturer := &fakeSubscriber{
		id:       "conn-3",
		identity: models.Identity{ID: "lect-2", Role: models.RoleLecturer},
	}

	if err := m.Join(context.Background(), "dosen-1", lecturer); !errors.Is(err, ErrNotStudent) {
		t.Fatalf("lecturer join = %v, want ErrNotStudent", err)
	}
}

func TestJoinUnknownOwner(t *testing.T) {
	m := testManager([2]string{"student-1", "ghost"})
	s1 := student("student-1", "conn-1")

	if err := m.Join(context.Background(), "ghost", s1); !errors.Is(err, ErrUnknownOwner) {
		t.Fatalf("join of unknown owner = %v, want ErrUnknownOwner", err)
	}
}

func TestApprovalNotRetroactive(t *testing.T) {
	perms := &fakePermissions{approved: map[[2]string]bool{}}
	dir := &fakeDirectory{lecturers: map[string]bool{"dosen-1": true}}
	m := NewManager(perms, dir)
	s1 := student("student-1", "conn-1")

	if err := m.Join(context.Background(), "dosen-1", s1); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("unapproved join = %v, want ErrNotApproved", err)
	}

	// Approval after the failed join does not create membership by
	// itself; a fresh join is required.
	perms.approved[[2]string{"student-1", "dosen-1"}] = true
	if got := m.MemberCount("dosen-1"); got != 0 {
		t.Errorf("membership appeared without a fresh join, count = %d", got)
	}
	if err := m.Join(context.Background(), "dosen-1", s1); err != nil {
		t.Fatalf("fresh join after approval failed: %v", err)
	}
}

func TestLeaveIdempotent(t *testing.T) {
	m := testManager([2]string{"student-1", "dosen-1"})
	s1 := student("student-1", "conn-1")

	if err := m.Join(context.Background(), "dosen-1", s1); err != nil {
		t.Fatal(err)
	}

	m.Leave("dosen-1", s1)
	m.Leave("dosen-1", s1)       // absent membership: no-op
	m.Leave("no-such-room", s1)  // unknown room: no-op
	if got := m.MemberCount("dosen-1"); got != 0 {
		t.Errorf("member count after leave = %d, want 0", got)
	}
}

func TestLeaveAll(t *testing.T) {
	m := testManager(
		[2]string{"student-1", "dosen-1"},
		[2]string{"student-1", "dosen-2"},
	)
	s1 := student("student-1", "conn-1")

	ctx := context.Background()
	if err := m.Join(ctx, "dosen-1", s1); err != nil {
		t.Fatal(err)
	}
	if err := m.Join(ctx, "dosen-2", s1); err != nil {
		t.Fatal(err)
	}

	owners := m.LeaveAll(s1)
	if len(owners) != 2 {
		t.Errorf("LeaveAll affected %d rooms, want 2", len(owners))
	}
	if m.MemberCount("dosen-1") != 0 || m.MemberCount("dosen-2") != 0 {
		t.Error("LeaveAll must empty every room the connection belonged to")
	}
}

func TestEvict(t *testing.T) {
	m := testManager([2]string{"student-1", "dosen-1"})
	ctx := context.Background()

	// Same student with two connections in the room.
	a := student("student-1", "conn-a")
	b := student("student-1", "conn-b")
	if err := m.Join(ctx, "dosen-1", a); err != nil {
		t.Fatal(err)
	}
	if err := m.Join(ctx, "dosen-1", b); err != nil {
		t.Fatal(err)
	}

	evicted := m.Evict("dosen-1", "student-1")
	if len(evicted) != 2 {
		t.Errorf("evicted %d subscribers, want 2", len(evicted))
	}
	if got := m.MemberCount("dosen-1"); got != 0 {
		t.Errorf("member count after evict = %d, want 0", got)
	}

	if got := m.Evict("dosen-1", "student-1"); got != nil {
		t.Errorf("evict from empty room returned %v, want nil", got)
	}
}

// splitPerms approves the gate read, then flips to revoked for the
// confirming read and runs a hook first, so a revocation can be
// interleaved into a join in flight.
type splitPerms struct {
	mu       sync.Mutex
	calls    int
	onSecond func()
}

func (p *splitPerms) HasApproved(_ context.Context, _, _ string) (bool, error) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	p.mu.Unlock()

	if call == 1 {
		return true, nil
	}
	if call == 2 && p.onSecond != nil {
		p.onSecond()
	}
	return false, nil
}

func TestJoinRevokedMidJoin(t *testing.T) {
	perms := &splitPerms{}
	dir := &fakeDirectory{lecturers: map[string]bool{"dosen-1": true}}
	m := NewManager(perms, dir)
	sub := student("student-1", "conn-1")

	// The permission is revoked after the join passed its approval gate;
	// the revocation's eviction runs before the join completes.
	perms.onSecond = func() {
		m.Evict("dosen-1", "student-1")
	}

	if err := m.Join(context.Background(), "dosen-1", sub); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("join racing a revocation: err = %v, want ErrNotApproved", err)
	}
	if got := m.MemberCount("dosen-1"); got != 0 {
		t.Errorf("revoked student holds %d live membership(s), want 0", got)
	}
}

func TestBroadcastReachesMembersOnly(t *testing.T) {
	m := testManager([2]string{"student-1", "dosen-1"})
	ctx := context.Background()

	member := student("student-1", "conn-1")
	outsider := student("student-2", "conn-2")

	if err := m.Join(ctx, "dosen-1", member); err != nil {
		t.Fatal(err)
	}
	if err := m.Join(ctx, "dosen-1", outsider); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("outsider join = %v, want ErrNotApproved", err)
	}

	delivered := m.Broadcast("dosen-1", models.EventDosenMoved, models.Movement{DosenID: "dosen-1"})
	if delivered != 1 {
		t.Errorf("delivered = %d, want 1", delivered)
	}
	if len(member.events) != 1 || member.events[0] != models.EventDosenMoved {
		t.Errorf("member events = %v, want one dosen_moved", member.events)
	}
	if len(outsider.events) != 0 {
		t.Errorf("outsider must receive nothing, got %v", outsider.events)
	}
}

func TestBroadcastSkipsClosedMember(t *testing.T) {
	m := testManager(
		[2]string{"student-1", "dosen-1"},
		[2]string{"student-2", "dosen-1"},
	)
	ctx := context.Background()

	open := student("student-1", "conn-1")
	gone := student("student-2", "conn-2")
	gone.closed = true

	if err := m.Join(ctx, "dosen-1", open); err != nil {
		t.Fatal(err)
	}
	if err := m.Join(ctx, "dosen-1", gone); err != nil {
		t.Fatal(err)
	}

	if delivered := m.Broadcast("dosen-1", models.EventDosenMoved, nil); delivered != 1 {
		t.Errorf("delivered = %d, want 1 (closed member dropped)", delivered)
	}
}
