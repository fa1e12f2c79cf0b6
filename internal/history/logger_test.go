// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dosentrack/dosentrack/internal/models"
)

// memStore keeps records in memory, newest last.
type memStore struct {
	records []*models.HistoryRecord
	readErr error
}

func (s *memStore) MostRecent(_ context.Context, ownerID string, day int, date string) (*models.HistoryRecord, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	for i := len(s.records) - 1; i >= 0; i-- {
		r := s.records[i]
		if r.OwnerID == ownerID && r.DayOfWeek == day && r.CalendarDate == date {
			return r, nil
		}
	}
	return nil, nil
}

func (s *memStore) Append(_ context.Context, rec *models.HistoryRecord) error {
	s.records = append(s.records, rec)
	return nil
}

var baseTime = time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC) // a Monday

func insideZone(zone string) models.DisplayLocation {
	return models.DisplayLocation{
		Latitude:        -3.219741,
		Longitude:       104.651220,
		ZoneName:        zone,
		IsInsideAnyZone: true,
	}
}

func TestFirstSampleOfDayLogs(t *testing.T) {
	store := &memStore{}
	l := NewLogger(store, time.Hour)

	logged, reason, err := l.Record(context.Background(), "dosen-1", insideZone("Campus A"), baseTime)
	if err != nil {
		t.Fatal(err)
	}
	if !logged || reason != "first_of_day" {
		t.Errorf("first sample: logged=%v reason=%q, want true/first_of_day", logged, reason)
	}
	if len(store.records) != 1 {
		t.Fatalf("want 1 record, got %d", len(store.records))
	}

	rec := store.records[0]
	if rec.DayOfWeek != 1 {
		t.Errorf("day of week = %d, want 1 (Monday)", rec.DayOfWeek)
	}
	if rec.CalendarDate != "2026-03-02" {
		t.Errorf("calendar date = %q, want 2026-03-02", rec.CalendarDate)
	}
}

func TestSameZoneWithinWindowSkips(t *testing.T) {
	store := &memStore{}
	l := NewLogger(store, time.Hour)
	ctx := context.Background()

	if _, _, err := l.Record(ctx, "dosen-1", insideZone("Campus A"), baseTime); err != nil {
		t.Fatal(err)
	}

	logged, reason, err := l.Record(ctx, "dosen-1", insideZone("Campus A"), baseTime.Add(10*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if logged || reason != "throttled" {
		t.Errorf("same zone after 10m: logged=%v reason=%q, want false/throttled", logged, reason)
	}
	if len(store.records) != 1 {
		t.Errorf("record count = %d, want 1", len(store.records))
	}
}

func TestSameZoneAfterWindowLogs(t *testing.T) {
	store := &memStore{}
	l := NewLogger(store, time.Hour)
	ctx := context.Background()

	if _, _, err := l.Record(ctx, "dosen-1", insideZone("Campus A"), baseTime); err != nil {
		t.Fatal(err)
	}

	logged, reason, err := l.Record(ctx, "dosen-1", insideZone("Campus A"), baseTime.Add(61*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if !logged || reason != "interval_elapsed" {
		t.Errorf("same zone after 61m: logged=%v reason=%q, want true/interval_elapsed", logged, reason)
	}
	if len(store.records) != 2 {
		t.Errorf("record count = %d, want 2", len(store.records))
	}
}

func TestZoneChangeLogsImmediately(t *testing.T) {
	store := &memStore{}
	l := NewLogger(store, time.Hour)
	ctx := context.Background()

	if _, _, err := l.Record(ctx, "dosen-1", insideZone("Campus A"), baseTime); err != nil {
		t.Fatal(err)
	}

	logged, reason, err := l.Record(ctx, "dosen-1", insideZone("Campus B"), baseTime.Add(30*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if !logged || reason != "zone_change" {
		t.Errorf("zone change after 30s: logged=%v reason=%q, want true/zone_change", logged, reason)
	}
}

func TestBucketsAreIndependent(t *testing.T) {
	store := &memStore{}
	l := NewLogger(store, time.Hour)
	ctx := context.Background()

	if _, _, err := l.Record(ctx, "dosen-1", insideZone("Campus A"), baseTime); err != nil {
		t.Fatal(err)
	}

	// Same zone a minute later, but the next calendar day: a fresh
	// bucket, so it logs as first of day.
	nextDay := baseTime.Add(24 * time.Hour).Add(time.Minute)
	logged, reason, err := l.Record(ctx, "dosen-1", insideZone("Campus A"), nextDay)
	if err != nil {
		t.Fatal(err)
	}
	if !logged || reason != "first_of_day" {
		t.Errorf("next-day sample: logged=%v reason=%q, want true/first_of_day", logged, reason)
	}

	// A different lecturer is also an independent bucket.
	logged, _, err = l.Record(ctx, "dosen-2", insideZone("Campus A"), baseTime.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if !logged {
		t.Error("other lecturer's first sample must log")
	}
}

func TestStoreReadErrorPropagates(t *testing.T) {
	readErr := errors.New("store down")
	l := NewLogger(&memStore{readErr: readErr}, time.Hour)

	_, _, err := l.Record(context.Background(), "dosen-1", insideZone("Campus A"), baseTime)
	if !errors.Is(err, readErr) {
		t.Errorf("err = %v, want wrapped store error", err)
	}
}
