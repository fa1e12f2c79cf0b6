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

// LocationStore holds the single latest display location per lecturer.
type LocationStore struct {
	db *DB
}

// NewLocationStore creates a location store.
func NewLocationStore(db *DB) *LocationStore {
	return &LocationStore{db: db}
}

// Upsert replaces the lecturer's latest location.
func (s *LocationStore) Upsert(ctx context.Context, loc *models.PersistedLocation) error {
	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO latest_locations (owner_id, latitude, longitude, zone_name, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(owner_id) DO UPDATE SET
			latitude   = excluded.latitude,
			longitude  = excluded.longitude,
			zone_name  = excluded.zone_name,
			updated_at = excluded.updated_at`,
		loc.OwnerID, loc.Latitude, loc.Longitude, loc.ZoneName, loc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert latest location: %w", err)
	}
	return nil
}

// Latest returns the lecturer's stored location, or ErrNotFound when no
// sample has ever been persisted.
func (s *LocationStore) Latest(ctx context.Context, ownerID string) (*models.PersistedLocation, error) {
	loc := &models.PersistedLocation{}
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT owner_id, latitude, longitude, zone_name, updated_at
		 FROM latest_locations WHERE owner_id = ?`, ownerID,
	).Scan(&loc.OwnerID, &loc.Latitude, &loc.Longitude, &loc.ZoneName, &loc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest location: %w", err)
	}
	return loc, nil
}
