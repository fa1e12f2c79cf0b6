// Dosentrack - Real-Time Campus Presence and Location Broadcasting
// Copyright 2026 Dosentrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dosentrack/dosentrack

package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dosentrack/dosentrack/internal/logging"
	"github.com/dosentrack/dosentrack/internal/metrics"
	"github.com/dosentrack/dosentrack/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 // 64 KB
)

// Client is one authenticated WebSocket connection. It sits between
// the transport and the hub: the read pump feeds inbound events to the
// router in receipt order, the write pump drains the buffered send
// channel.
type Client struct {
	id       string
	identity models.Identity
	hub      *Hub
	conn     *websocket.Conn
	router   *Router
	send     chan Message

	// watchdog forces a disconnect when a lecturer connection stops
	// sending; nil for students.
	watchdog          *time.Timer
	inactivityTimeout time.Duration

	mu     sync.RWMutex
	closed bool
}

// NewClient creates a client for an already-authenticated connection.
// A positive inactivityTimeout arms the lecturer watchdog; students
// never get one regardless of the value.
func NewClient(hub *Hub, conn *websocket.Conn, identity models.Identity, router *Router, inactivityTimeout time.Duration) *Client {
	return &Client{
		id:                uuid.NewString(),
		identity:          identity,
		hub:               hub,
		conn:              conn,
		router:            router,
		send:              make(chan Message, 256),
		inactivityTimeout: inactivityTimeout,
	}
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// Identity returns the identity authenticated for this connection.
func (c *Client) Identity() models.Identity {
	return c.identity
}

// Deliver queues a targeted event for this connection. It reports
// false when the connection is gone or its buffer is full; delivery is
// at most once and a miss is never an error.
func (c *Client) Deliver(event string, data any) bool {
	return c.enqueue(Message{Type: event, Data: data})
}

func (c *Client) enqueue(message Message) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// shutdown makes all future deliveries no-ops, closes the send channel
// so the write pump terminates, and cancels the watchdog. Idempotent;
// called by the hub on unregister.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	if c.watchdog != nil {
		c.watchdog.Stop()
	}
}

// touch resets the inactivity watchdog. Called for every inbound
// event, including unparsable ones: a misbehaving client is still an
// active one.
func (c *Client) touch() {
	if c.watchdog != nil {
		c.watchdog.Reset(c.inactivityTimeout)
	}
}

// readPump reads frames from the connection and dispatches them in
// receipt order. It owns the disconnect: any exit unregisters the
// client from the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Str("identity_id", c.identity.ID).Msg("unexpected websocket close error")
			}
			break
		}

		c.touch()

		env, err := ParseEnvelope(raw)
		if err != nil {
			c.deliverError(err)
			continue
		}
		c.router.Dispatch(context.Background(), c, env)
	}
}

// deliverError reports a recoverable per-connection error to the
// sender. No error on this path ever closes the connection.
func (c *Client) deliverError(err error) {
	var vErr *ValidationError
	message := "malformed frame"
	if errors.As(err, &vErr) {
		message = vErr.Error()
	}
	c.Deliver(models.EventError, models.WireError{Message: message})
}

// writePump drains the send channel to the connection and keeps the
// link alive with protocol pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				logging.Error().Err(err).Msg("failed to write message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start registers the client with the hub, arms the lecturer
// inactivity watchdog, and begins the read and write pumps.
func (c *Client) Start() {
	if c.identity.Role == models.RoleLecturer && c.inactivityTimeout > 0 {
		c.watchdog = time.AfterFunc(c.inactivityTimeout, func() {
			metrics.InactivityDisconnects.Inc()
			logging.Info().
				Str("identity_id", c.identity.ID).
				Dur("timeout", c.inactivityTimeout).
				Msg("closing inactive lecturer connection")
			_ = c.conn.Close()
		})
	}

	c.hub.Register <- c
	go c.writePump()
	go c.readPump()
}
