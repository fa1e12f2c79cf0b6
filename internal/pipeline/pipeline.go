// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

// Package pipeline orchestrates one incoming location sample:
// geofence classification, immediate room broadcast, independently
// throttled latest-location persistence, and independently throttled
// history append.
//
// The broadcast is unconditional and un-throttled. The two write paths
// are fire-and-forget: they run on their own goroutines behind a
// circuit breaker, and a store failure is logged and counted without
// retracting the broadcast or failing the original request.
package pipeline

import (
	"context"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/dosentrack/dosentrack/internal/geofence"
	"github.com/dosentrack/dosentrack/internal/history"
	"github.com/dosentrack/dosentrack/internal/logging"
	"github.com/dosentrack/dosentrack/internal/metrics"
	"github.com/dosentrack/dosentrack/internal/models"
	"github.com/dosentrack/dosentrack/internal/rooms"
)

// LocationStore upserts the latest display location per lecturer.
type LocationStore interface {
	Upsert(ctx context.Context, loc *models.PersistedLocation) error
}

// Config holds the pipeline throttle and breaker settings.
type Config struct {
	// PersistInterval is the minimum time between two latest-location
	// writes for the same lecturer (60s by default).
	PersistInterval time.Duration

	// WriteTimeout bounds each background store write.
	WriteTimeout time.Duration

	// BreakerFailureThreshold is the number of consecutive store
	// failures that open the circuit breaker.
	BreakerFailureThreshold uint32

	// BreakerOpenTimeout is how long the breaker stays open before
	// probing the store again.
	BreakerOpenTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		PersistInterval:         60 * time.Second,
		WriteTimeout:            10 * time.Second,
		BreakerFailureThreshold: 5,
		BreakerOpenTimeout:      30 * time.Second,
	}
}

// Pipeline processes location samples for all lecturers. Safe for
// concurrent use; per-lecturer throttle state is guarded by a mutex.
type Pipeline struct {
	geo       *geofence.Engine
	rooms     *rooms.Manager
	historian *history.Logger
	locations LocationStore
	breaker   *gobreaker.CircuitBreaker[any]
	cfg       Config

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	// histLocks serializes the history decide-then-append sequence per
	// lecturer. Two rapid samples would otherwise both read a stale
	// bucket and both append.
	histLocks map[string]*sync.Mutex

	// now is replaceable in tests.
	now func() time.Time

	// wg tracks in-flight background writes so shutdown can drain them.
	wg sync.WaitGroup
}

// New assembles a pipeline over the given engine components.
func New(geo *geofence.Engine, roomMgr *rooms.Manager, historian *history.Logger, locations LocationStore, cfg Config) *Pipeline {
	if cfg.PersistInterval <= 0 {
		cfg.PersistInterval = 60 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.BreakerFailureThreshold == 0 {
		cfg.BreakerFailureThreshold = 5
	}
	if cfg.BreakerOpenTimeout <= 0 {
		cfg.BreakerOpenTimeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "store-writes",
		Timeout: cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				metrics.StoreBreakerState.Set(1)
			} else {
				metrics.StoreBreakerState.Set(0)
			}
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("store write breaker state changed")
		},
	})

	return &Pipeline{
		geo:       geo,
		rooms:     roomMgr,
		historian: historian,
		locations: locations,
		breaker:   breaker,
		cfg:       cfg,
		limiters:  make(map[string]*rate.Limiter),
		histLocks: make(map[string]*sync.Mutex),
		now:       time.Now,
	}
}

// HandleSample processes one raw sample from a lecturer connection and
// returns the payload that was broadcast, for the sender's
// acknowledgment. The returned payload is identical to what every room
// member received.
func (p *Pipeline) HandleSample(ctx context.Context, owner models.Identity, lat, lon float64) models.Movement {
	now := p.now().UTC()
	class := p.geo.Classify(lat, lon)

	payload := models.Movement{
		DosenID:      owner.ID,
		Latitude:     class.DisplayLatitude,
		Longitude:    class.DisplayLongitude,
		PositionName: class.ZoneName,
		IsInside:     class.IsInsideAnyZone,
		LastUpdated:  now.Format(time.RFC3339),
	}

	// Step 1: immediate, un-throttled room broadcast.
	members := p.rooms.MemberCount(owner.ID)
	delivered := p.rooms.Broadcast(owner.ID, models.EventDosenMoved, payload)
	metrics.BroadcastsDelivered.Add(float64(delivered))
	if dropped := members - delivered; dropped > 0 {
		metrics.BroadcastsDropped.Add(float64(dropped))
	}

	// Step 2: throttled persistence, independent of history.
	if p.allowPersist(owner.ID, now) {
		p.persistAsync(owner.ID, class, now)
	} else {
		metrics.PersistenceWrites.WithLabelValues("throttled").Inc()
	}

	// Step 3: history decision. Out-of-zone samples are never
	// historized; the policy is not even evaluated for them.
	if class.IsInsideAnyZone {
		p.historyAsync(owner.ID, class, now)
	} else {
		metrics.HistoryDecisions.WithLabelValues("out_of_zone").Inc()
	}

	return payload
}

// allowPersist consults the per-lecturer persistence throttle.
func (p *Pipeline) allowPersist(ownerID string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	lim, ok := p.limiters[ownerID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(p.cfg.PersistInterval), 1)
		p.limiters[ownerID] = lim
	}
	return lim.AllowN(now, 1)
}

// historyLock returns the per-lecturer lock guarding the history
// policy read and its append.
func (p *Pipeline) historyLock(ownerID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.histLocks[ownerID]
	if !ok {
		lock = &sync.Mutex{}
		p.histLocks[ownerID] = lock
	}
	return lock
}

// persistAsync upserts the latest location on a background goroutine.
func (p *Pipeline) persistAsync(ownerID string, class geofence.Classification, at time.Time) {
	loc := &models.PersistedLocation{
		OwnerID:   ownerID,
		Latitude:  class.DisplayLatitude,
		Longitude: class.DisplayLongitude,
		ZoneName:  class.ZoneName,
		UpdatedAt: at,
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.WriteTimeout)
		defer cancel()

		_, err := p.breaker.Execute(func() (any, error) {
			return nil, p.locations.Upsert(ctx, loc)
		})
		if err != nil {
			metrics.PersistenceWrites.WithLabelValues("error").Inc()
			logging.Err(err).Str("dosen_id", ownerID).Msg("latest location upsert failed")
			return
		}
		metrics.PersistenceWrites.WithLabelValues("written").Inc()
	}()
}

// historyAsync evaluates the history policy and appends on a
// background goroutine.
func (p *Pipeline) historyAsync(ownerID string, class geofence.Classification, at time.Time) {
	loc := models.DisplayLocation{
		Latitude:        class.DisplayLatitude,
		Longitude:       class.DisplayLongitude,
		ZoneName:        class.ZoneName,
		IsInsideAnyZone: class.IsInsideAnyZone,
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.WriteTimeout)
		defer cancel()

		// The decision reads the bucket's most recent record before
		// appending; overlapping evaluations for one lecturer must not
		// interleave between that read and the write.
		lock := p.historyLock(ownerID)
		lock.Lock()
		defer lock.Unlock()

		res, err := p.breaker.Execute(func() (any, error) {
			logged, reason, err := p.historian.Record(ctx, ownerID, loc, at)
			if err != nil {
				return nil, err
			}
			return [2]any{logged, reason}, nil
		})
		if err != nil {
			metrics.HistoryDecisions.WithLabelValues("error").Inc()
			logging.Err(err).Str("dosen_id", ownerID).Msg("history append failed")
			return
		}

		decision := res.([2]any)
		metrics.HistoryDecisions.WithLabelValues(decision[1].(string)).Inc()
	}()
}

// Wait blocks until all in-flight background writes complete. Called
// during graceful shutdown so the process does not exit with pending
// store writes.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}
