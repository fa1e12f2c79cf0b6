// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

// Package store persists accounts, tracking permissions, latest
// locations, and movement history in SQLite. The broadcast engine
// consumes these stores through narrow interfaces defined by its own
// packages; nothing here knows about connections or rooms.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// schema is applied on every open; all statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	display_name  TEXT NOT NULL,
	role          TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS tracking_permissions (
	id          TEXT PRIMARY KEY,
	student_id  TEXT NOT NULL REFERENCES accounts(id),
	lecturer_id TEXT NOT NULL REFERENCES accounts(id),
	status      TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL,
	decided_at  TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_permissions_pair
	ON tracking_permissions(student_id, lecturer_id, status);

CREATE TABLE IF NOT EXISTS latest_locations (
	owner_id   TEXT PRIMARY KEY REFERENCES accounts(id),
	latitude   REAL NOT NULL,
	longitude  REAL NOT NULL,
	zone_name  TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS movement_history (
	id            TEXT PRIMARY KEY,
	owner_id      TEXT NOT NULL REFERENCES accounts(id),
	day_of_week   INTEGER NOT NULL,
	calendar_date TEXT NOT NULL,
	zone_name     TEXT NOT NULL,
	latitude      REAL NOT NULL,
	longitude     REAL NOT NULL,
	logged_at     TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_bucket
	ON movement_history(owner_id, day_of_week, calendar_date, logged_at DESC);
`

// DB wraps the SQLite connection shared by all stores.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral in-process database in tests.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// churn from the engine's concurrent fire-and-forget writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{sql: db}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Ping verifies the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}
