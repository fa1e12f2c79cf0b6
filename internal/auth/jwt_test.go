// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dosentrack/dosentrack/internal/models"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testAccount() *models.Account {
	return &models.Account{
		ID:          "acc-1",
		Username:    "dr.lecturer",
		DisplayName: "Dr. Lecturer",
		Role:        models.RoleLecturer,
	}
}

func TestNewJWTManagerShortSecret(t *testing.T) {
	if _, err := NewJWTManager("short", time.Hour); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	m, err := NewJWTManager(testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	token, err := m.GenerateToken(testAccount())
	if err != nil {
		t.Fatal(err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "acc-1" || claims.Role != "lecturer" {
		t.Errorf("claims = %+v, want acc-1/lecturer", claims)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	m, err := NewJWTManager(testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	// A manager with a negative timeout falls back to the default, so
	// build an expired token through a second manager sharing the
	// secret but a one-nanosecond lifetime.
	short := &JWTManager{secret: []byte(testSecret), timeout: time.Nanosecond}

	token, err := short.GenerateToken(testAccount())
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := m.ValidateToken(token); !errors.Is(err, ErrExpiredCredentials) {
		t.Errorf("err = %v, want ErrExpiredCredentials", err)
	}
}

func TestValidateTamperedToken(t *testing.T) {
	m, _ := NewJWTManager(testSecret, time.Hour)
	other, _ := NewJWTManager("ffffffffffffffffffffffffffffffff", time.Hour)

	token, err := other.GenerateToken(testAccount())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.ValidateToken(token); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := m.ValidateToken("not.a.token"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("garbage token err = %v, want ErrInvalidCredentials", err)
	}
}

// fakeDirectory returns a fixed account for one id.
type fakeDirectory struct {
	account *models.Account
}

func (d *fakeDirectory) FindByID(_ context.Context, id string) (*models.Account, error) {
	if d.account != nil && d.account.ID == id {
		return d.account, nil
	}
	return nil, nil
}

func TestAuthenticateHeader(t *testing.T) {
	m, _ := NewJWTManager(testSecret, time.Hour)
	a := NewConnectionAuthenticator(m, &fakeDirectory{account: testAccount()})

	token, err := m.GenerateToken(testAccount())
	if err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	identity, err := a.Authenticate(context.Background(), r)
	if err != nil {
		t.Fatal(err)
	}
	if identity.ID != "acc-1" || identity.Role != models.RoleLecturer {
		t.Errorf("identity = %+v", identity)
	}
}

func TestAuthenticateQueryFallback(t *testing.T) {
	m, _ := NewJWTManager(testSecret, time.Hour)
	a := NewConnectionAuthenticator(m, &fakeDirectory{account: testAccount()})

	token, err := m.GenerateToken(testAccount())
	if err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest("GET", "/ws?token="+token, nil)
	if _, err := a.Authenticate(context.Background(), r); err != nil {
		t.Fatalf("query-parameter token rejected: %v", err)
	}
}

func TestAuthenticateMissingToken(t *testing.T) {
	m, _ := NewJWTManager(testSecret, time.Hour)
	a := NewConnectionAuthenticator(m, &fakeDirectory{account: testAccount()})

	r := httptest.NewRequest("GET", "/ws", nil)
	if _, err := a.Authenticate(context.Background(), r); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("err = %v, want ErrNoCredentials", err)
	}
}

func TestAuthenticateDeletedAccount(t *testing.T) {
	m, _ := NewJWTManager(testSecret, time.Hour)
	a := NewConnectionAuthenticator(m, &fakeDirectory{}) // directory is empty

	token, err := m.GenerateToken(testAccount())
	if err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	if _, err := a.Authenticate(context.Background(), r); !errors.Is(err, ErrUnknownIdentity) {
		t.Errorf("err = %v, want ErrUnknownIdentity", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-password")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword(hash, "s3cret-password") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "wrong-password") {
		t.Error("wrong password accepted")
	}
}
