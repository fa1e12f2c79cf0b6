// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dosentrack/dosentrack/internal/models"
)

var (
	// ErrDuplicateRequest is returned when a pending or approved
	// request already exists for the pair.
	ErrDuplicateRequest = errors.New("a pending or approved request already exists")

	// ErrInvalidTransition is returned when a decision does not apply
	// to the permission's current status.
	ErrInvalidTransition = errors.New("invalid permission status transition")
)

// RevocationFunc is notified when an approved permission is revoked,
// with the affected (student, lecturer) pair. The broadcast engine
// registers one to evict live room memberships.
type RevocationFunc func(studentID, lecturerID string)

// PermissionStore persists the tracking-permission workflow. The
// broadcast engine only reads approval state through HasApproved; the
// rest is request/decide CRUD for the HTTP surface.
type PermissionStore struct {
	db *DB

	mu       sync.RWMutex
	onRevoke []RevocationFunc
}

// NewPermissionStore creates a permission store.
func NewPermissionStore(db *DB) *PermissionStore {
	return &PermissionStore{db: db}
}

// OnRevoke registers a revocation observer. Observers run on the
// revoking request's goroutine after the row is updated.
func (s *PermissionStore) OnRevoke(fn RevocationFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRevoke = append(s.onRevoke, fn)
}

// Request creates a pending tracking request from a student to a
// lecturer. At most one live (pending or approved) request may exist
// per pair.
func (s *PermissionStore) Request(ctx context.Context, studentID, lecturerID, reason string) (*models.TrackingPermission, error) {
	var existing int
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tracking_permissions
		 WHERE student_id = ? AND lecturer_id = ? AND status IN (?, ?)`,
		studentID, lecturerID, string(models.PermissionPending), string(models.PermissionApproved),
	).Scan(&existing)
	if err != nil {
		return nil, fmt.Errorf("check existing requests: %w", err)
	}
	if existing > 0 {
		return nil, ErrDuplicateRequest
	}

	perm := &models.TrackingPermission{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		LecturerID: lecturerID,
		Status:     models.PermissionPending,
		Reason:     reason,
		CreatedAt:  time.Now().UTC(),
	}
	_, err = s.db.sql.ExecContext(ctx,
		`INSERT INTO tracking_permissions (id, student_id, lecturer_id, status, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		perm.ID, perm.StudentID, perm.LecturerID, string(perm.Status), perm.Reason, perm.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert tracking request: %w", err)
	}
	return perm, nil
}

// Approve moves a pending request to approved.
func (s *PermissionStore) Approve(ctx context.Context, id string) error {
	return s.decide(ctx, id, models.PermissionPending, models.PermissionApproved)
}

// Reject moves a pending request to rejected.
func (s *PermissionStore) Reject(ctx context.Context, id string) error {
	return s.decide(ctx, id, models.PermissionPending, models.PermissionRejected)
}

// Revoke moves an approved permission to revoked and notifies the
// registered observers so live memberships are evicted.
func (s *PermissionStore) Revoke(ctx context.Context, id string) error {
	perm, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.decide(ctx, id, models.PermissionApproved, models.PermissionRevoked); err != nil {
		return err
	}

	s.mu.RLock()
	observers := make([]RevocationFunc, len(s.onRevoke))
	copy(observers, s.onRevoke)
	s.mu.RUnlock()
	for _, fn := range observers {
		fn(perm.StudentID, perm.LecturerID)
	}
	return nil
}

// decide performs a guarded status transition.
func (s *PermissionStore) decide(ctx context.Context, id string, from, to models.PermissionStatus) error {
	res, err := s.db.sql.ExecContext(ctx,
		`UPDATE tracking_permissions SET status = ?, decided_at = ? WHERE id = ? AND status = ?`,
		string(to), time.Now().UTC(), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("update permission status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("permission rows affected: %w", err)
	}
	if affected == 0 {
		// Either the row is missing or it is not in the expected state.
		if _, err := s.FindByID(ctx, id); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

// HasApproved reports whether an approved permission currently exists
// between the student and the lecturer. This is the single read the
// broadcast engine performs at join time.
func (s *PermissionStore) HasApproved(ctx context.Context, studentID, lecturerID string) (bool, error) {
	var count int
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tracking_permissions
		 WHERE student_id = ? AND lecturer_id = ? AND status = ?`,
		studentID, lecturerID, string(models.PermissionApproved),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query approval: %w", err)
	}
	return count > 0, nil
}

// FindByID returns the permission with the given id.
func (s *PermissionStore) FindByID(ctx context.Context, id string) (*models.TrackingPermission, error) {
	row := s.db.sql.QueryRowContext(ctx,
		`SELECT id, student_id, lecturer_id, status, reason, created_at, decided_at
		 FROM tracking_permissions WHERE id = ?`, id)

	perm, err := scanPermission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return perm, err
}

// ListForLecturer returns all requests addressed to the lecturer,
// newest first.
func (s *PermissionStore) ListForLecturer(ctx context.Context, lecturerID string) ([]*models.TrackingPermission, error) {
	return s.list(ctx, `lecturer_id = ?`, lecturerID)
}

// ListForStudent returns all requests created by the student, newest
// first.
func (s *PermissionStore) ListForStudent(ctx context.Context, studentID string) ([]*models.TrackingPermission, error) {
	return s.list(ctx, `student_id = ?`, studentID)
}

func (s *PermissionStore) list(ctx context.Context, where string, arg any) ([]*models.TrackingPermission, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, student_id, lecturer_id, status, reason, created_at, decided_at
		 FROM tracking_permissions WHERE `+where+` ORDER BY created_at DESC`, arg)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()

	var perms []*models.TrackingPermission
	for rows.Next() {
		perm, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

func scanPermission(row scanner) (*models.TrackingPermission, error) {
	perm := &models.TrackingPermission{}
	var status string
	var decidedAt sql.NullTime
	if err := row.Scan(&perm.ID, &perm.StudentID, &perm.LecturerID, &status, &perm.Reason, &perm.CreatedAt, &decidedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan permission: %w", err)
	}
	perm.Status = models.PermissionStatus(status)
	if decidedAt.Valid {
		perm.DecidedAt = &decidedAt.Time
	}
	return perm, nil
}
