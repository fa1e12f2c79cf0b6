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

	"github.com/dosentrack/dosentrack/internal/models"
)

// HistoryStore is the append-only movement history, bucketed by
// (owner, day-of-week, calendar date).
type HistoryStore struct {
	db *DB
}

// NewHistoryStore creates a history store.
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// MostRecent returns the newest record in the given bucket, or
// (nil, nil) when the bucket is empty.
func (s *HistoryStore) MostRecent(ctx context.Context, ownerID string, dayOfWeek int, calendarDate string) (*models.HistoryRecord, error) {
	row := s.db.sql.QueryRowContext(ctx,
		`SELECT id, owner_id, day_of_week, calendar_date, zone_name, latitude, longitude, logged_at
		 FROM movement_history
		 WHERE owner_id = ? AND day_of_week = ? AND calendar_date = ?
		 ORDER BY logged_at DESC LIMIT 1`,
		ownerID, dayOfWeek, calendarDate)

	rec, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// Append inserts one history record.
func (s *HistoryStore) Append(ctx context.Context, rec *models.HistoryRecord) error {
	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO movement_history
			(id, owner_id, day_of_week, calendar_date, zone_name, latitude, longitude, logged_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OwnerID, rec.DayOfWeek, rec.CalendarDate, rec.ZoneName, rec.Latitude, rec.Longitude, rec.LoggedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history record: %w", err)
	}
	return nil
}

// List returns the owner's records for one calendar date, newest first.
func (s *HistoryStore) List(ctx context.Context, ownerID, calendarDate string) ([]*models.HistoryRecord, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, owner_id, day_of_week, calendar_date, zone_name, latitude, longitude, logged_at
		 FROM movement_history
		 WHERE owner_id = ? AND calendar_date = ?
		 ORDER BY logged_at DESC`,
		ownerID, calendarDate)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var recs []*models.HistoryRecord
	for rows.Next() {
		rec, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func scanHistory(row scanner) (*models.HistoryRecord, error) {
	rec := &models.HistoryRecord{}
	if err := row.Scan(&rec.ID, &rec.OwnerID, &rec.DayOfWeek, &rec.CalendarDate, &rec.ZoneName, &rec.Latitude, &rec.Longitude, &rec.LoggedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan history record: %w", err)
	}
	return rec, nil
}
