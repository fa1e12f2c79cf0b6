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
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dosentrack/dosentrack/internal/models"
)

// ErrUsernameTaken is returned when creating an account with an
// existing username.
var ErrUsernameTaken = errors.New("username already taken")

// AccountStore persists user accounts.
type AccountStore struct {
	db *DB
}

// NewAccountStore creates an account store over the shared database.
func NewAccountStore(db *DB) *AccountStore {
	return &AccountStore{db: db}
}

// Create inserts a new account. The id and creation time are assigned
// here; the password must already be hashed.
func (s *AccountStore) Create(ctx context.Context, username, passwordHash, displayName string, role models.Role) (*models.Account, error) {
	acc := &models.Account{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO accounts (id, username, password_hash, display_name, role, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		acc.ID, acc.Username, acc.PasswordHash, acc.DisplayName, string(acc.Role), acc.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return acc, nil
}

// FindByID returns the account with the given id, or nil when absent.
// The nil-without-error contract lets the connection authenticator
// distinguish a deleted account from a store failure.
func (s *AccountStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	row := s.db.sql.QueryRowContext(ctx,
		`SELECT id, username, password_hash, display_name, role, created_at
		 FROM accounts WHERE id = ?`, id)

	acc, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return acc, err
}

// FindByUsername returns the account with the given username.
func (s *AccountStore) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	row := s.db.sql.QueryRowContext(ctx,
		`SELECT id, username, password_hash, display_name, role, created_at
		 FROM accounts WHERE username = ?`, username)

	acc, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return acc, err
}

// IsLecturer reports whether the id refers to a lecturer account.
func (s *AccountStore) IsLecturer(ctx context.Context, id string) (bool, error) {
	var role string
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT role FROM accounts WHERE id = ?`, id).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query account role: %w", err)
	}
	return models.Role(role) == models.RoleLecturer, nil
}

// ListLecturers returns all lecturer accounts ordered by display name.
func (s *AccountStore) ListLecturers(ctx context.Context) ([]*models.Account, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, username, password_hash, display_name, role, created_at
		 FROM accounts WHERE role = ? ORDER BY display_name`, string(models.RoleLecturer))
	if err != nil {
		return nil, fmt.Errorf("list lecturers: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*models.Account, error) {
	acc := &models.Account{}
	var role string
	if err := row.Scan(&acc.ID, &acc.Username, &acc.PasswordHash, &acc.DisplayName, &role, &acc.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	acc.Role = models.Role(role)
	return acc, nil
}

// isUniqueViolation detects a UNIQUE constraint failure without
// depending on driver-specific error types.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
