// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

// Package history decides when a lecturer's movement deserves a new
// append-only history record. Records are bucketed per (lecturer,
// day-of-week, calendar date); the decision reads only the most recent
// record in the bucket and never mutates existing rows.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dosentrack/dosentrack/internal/models"
)

// Store is the append-only history persistence consumed by the logger.
type Store interface {
	// MostRecent returns the latest record for the bucket, or nil when
	// the bucket has no records yet.
	MostRecent(ctx context.Context, ownerID string, dayOfWeek int, date string) (*models.HistoryRecord, error)
	Append(ctx context.Context, rec *models.HistoryRecord) error
}

// Logger applies the history throttling policy.
type Logger struct {
	store       Store
	minInterval time.Duration
}

// NewLogger creates a history logger. minInterval is the quiet window
// required between same-zone records within one bucket (1 hour in the
// default configuration).
func NewLogger(store Store, minInterval time.Duration) *Logger {
	return &Logger{store: store, minInterval: minInterval}
}

// ShouldLog reports whether a new record should be appended for the
// sample, along with the reason used for metrics and logging:
//
//   - no prior record in the bucket: log (first sample of the day)
//   - prior record in a different zone: log immediately
//   - prior record in the same zone, minInterval elapsed: log
//   - otherwise: skip
func (l *Logger) ShouldLog(ctx context.Context, ownerID string, dayOfWeek int, date, newZone string, now time.Time) (bool, string, error) {
	last, err := l.store.MostRecent(ctx, ownerID, dayOfWeek, date)
	if err != nil {
		return false, "", fmt.Errorf("read most recent history record: %w", err)
	}

	switch {
	case last == nil:
		return true, "first_of_day", nil
	case last.ZoneName != newZone:
		return true, "zone_change", nil
	case now.Sub(last.LoggedAt) >= l.minInterval:
		return true, "interval_elapsed", nil
	default:
		return false, "throttled", nil
	}
}

// Record evaluates the policy for the display location and appends a
// new record when it passes. Returns whether a record was written and
// the decision reason.
func (l *Logger) Record(ctx context.Context, ownerID string, loc models.DisplayLocation, at time.Time) (bool, string, error) {
	day := int(at.Weekday())
	date := at.Format(models.DateLayout)

	ok, reason, err := l.ShouldLog(ctx, ownerID, day, date, loc.ZoneName, at)
	if err != nil || !ok {
		return false, reason, err
	}

	rec := &models.HistoryRecord{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		DayOfWeek:    day,
		CalendarDate: date,
		ZoneName:     loc.ZoneName,
		Latitude:     loc.Latitude,
		Longitude:    loc.Longitude,
		LoggedAt:     at,
	}
	if err := l.store.Append(ctx, rec); err != nil {
		return false, reason, fmt.Errorf("append history record: %w", err)
	}
	return true, reason, nil
}
