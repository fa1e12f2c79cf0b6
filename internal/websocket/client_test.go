// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

package websocket

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dosentrack/dosentrack/internal/models"
)

// dialTestConn upgrades one connection through an httptest server and
// returns both ends.
func dialTestConn(t *testing.T) (server, dialer *websocket.Conn) {
	t.Helper()

	connCh := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		connCh <- conn
	}))
	t.Cleanup(srv.Close)

	dialer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = dialer.Close() })

	select {
	case server = <-connCh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the upgraded connection")
	}
	return server, dialer
}

func waitClientCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() != want && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := hub.GetClientCount(); got != want {
		t.Fatalf("client count = %d, want %d", got, want)
	}
}

func TestWatchdogClosesIdleLecturer(t *testing.T) {
	hub, _, _ := newTestHub(t, "L1")
	f := newRouterFixture(t, "L1")
	serverConn, dialerConn := dialTestConn(t)

	c := NewClient(hub, serverConn, lecturerIdentity("L1"), f.router, 100*time.Millisecond)
	c.Start()

	_ = dialerConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := dialerConn.ReadMessage()
	if err == nil {
		t.Fatal("idle lecturer connection was not closed")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		t.Fatal("connection still open past the inactivity timeout")
	}

	waitClientCount(t, hub, 0)
}

func TestWatchdogDeferredByInboundFrames(t *testing.T) {
	hub, _, _ := newTestHub(t, "L1")
	f := newRouterFixture(t, "L1")
	serverConn, dialerConn := dialTestConn(t)

	c := NewClient(hub, serverConn, lecturerIdentity("L1"), f.router, 150*time.Millisecond)
	c.Start()

	// Keep sending well past the quiet window: every inbound frame
	// resets the watchdog.
	active := time.Now().Add(400 * time.Millisecond)
	for time.Now().Before(active) {
		if err := dialerConn.WriteJSON(Message{Type: models.EventPing}); err != nil {
			t.Fatalf("connection closed while the lecturer was active: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	// The frames earned pongs the whole time, so the link is still up.
	_ = dialerConn.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := dialerConn.ReadMessage(); err != nil {
		t.Fatalf("expected a pong on the live connection: %v", err)
	}

	// Gone quiet: the watchdog fires and the server closes the link.
	_ = dialerConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := dialerConn.ReadMessage()
		if err == nil {
			continue // drain remaining pongs
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			t.Fatal("quiet lecturer connection was not closed")
		}
		return
	}
}

func TestStudentHasNoWatchdog(t *testing.T) {
	hub, _, _ := newTestHub(t)
	f := newRouterFixture(t)
	serverConn, dialerConn := dialTestConn(t)

	c := NewClient(hub, serverConn, studentIdentity("S1"), f.router, 50*time.Millisecond)
	c.Start()
	waitClientCount(t, hub, 1)

	time.Sleep(200 * time.Millisecond)
	if c.watchdog != nil {
		t.Error("student connection must not carry a watchdog")
	}
	if err := dialerConn.WriteJSON(Message{Type: models.EventPing}); err != nil {
		t.Fatalf("idle student connection was closed: %v", err)
	}
}

func TestDisconnectCancelsWatchdog(t *testing.T) {
	hub, _, _ := newTestHub(t, "L1")
	f := newRouterFixture(t, "L1")
	serverConn, dialerConn := dialTestConn(t)

	c := NewClient(hub, serverConn, lecturerIdentity("L1"), f.router, time.Minute)
	c.Start()
	waitClientCount(t, hub, 1)

	_ = dialerConn.Close()
	waitClientCount(t, hub, 0)

	// shutdown already stopped the timer, so Stop reports false.
	if c.watchdog.Stop() {
		t.Error("watchdog still armed after disconnect")
	}
}
