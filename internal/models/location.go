// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

package models

import "time"

// DisplayLocation is a privacy-masked, zone-classified position derived
// from a raw sample. It is what subscribers see; raw coordinates are
// only exposed when the sample falls inside a configured geofence zone.
type DisplayLocation struct {
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	ZoneName        string  `json:"zone_name"`
	IsInsideAnyZone bool    `json:"is_inside_any_zone"`
}

// PersistedLocation is the latest stored display location for a
// lecturer. One row per lecturer, upserted under the persistence
// throttle; UpdatedAt is monotonically non-decreasing per lecturer.
type PersistedLocation struct {
	OwnerID   string    `json:"dosen_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	ZoneName  string    `json:"position_name"`
	UpdatedAt time.Time `json:"last_updated"`
}

// HistoryRecord is one append-only movement history entry, bucketed by
// (owner, day-of-week, calendar date). Records are never updated or
// deleted by the engine and are read in reverse-chronological order.
type HistoryRecord struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"dosen_id"`
	DayOfWeek    int       `json:"day_of_week"` // 0 (Sunday) through 6 (Saturday)
	CalendarDate string    `json:"calendar_date"`
	ZoneName     string    `json:"position_name"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	LoggedAt     time.Time `json:"logged_at"`
}

// DateLayout is the calendar-date format used for history bucketing.
const DateLayout = "2006-01-02"
