package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// sendBufferSize bounds the per-connection outbound queue. At 60 Hz
	// a healthy client drains this almost immediately; a stalled one
	// starts losing frames instead of stalling the room.
	sendBufferSize = 256

	writeTimeout = 10 * time.Second
)

// Conn wraps one client WebSocket. Outbound traffic goes through a
// buffered channel drained by writePump; inbound frames are handed to
// the owning room actor via the readPump callbacks. Conn itself holds
// no game state.
type Conn struct {
	id       string
	username string
	ws       *websocket.Conn
	send     chan []byte
	logger   *log.Logger

	done     chan struct{}
	doneOnce sync.Once
}

// newConn creates a connection wrapper with a fresh id.
func newConn(ws *websocket.Conn, username string, logger *log.Logger) *Conn {
	return &Conn{
		id:       uuid.NewString(),
		username: username,
		ws:       ws,
		send:     make(chan []byte, sendBufferSize),
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// ID returns the connection identifier.
func (c *Conn) ID() string {
	return c.id
}

// Username returns the display name carried in the connect request.
// Empty on matchmaker connections until JOIN_QUEUE supplies one.
func (c *Conn) Username() string {
	return c.username
}

// Send marshals v and queues it for delivery. Non-blocking: when the
// buffer is full the message is dropped, because the next tick's
// snapshot supersedes it anyway.
func (c *Conn) Send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("marshal outbound message", "conn", c.id, "error", err)
		return
	}

	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- data:
	default:
		c.logger.Warn("send buffer full, dropping message", "conn", c.id)
	}
}

// Done closes when the connection is finished.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close tears the connection down. Safe to call multiple times.
func (c *Conn) Close() {
	c.doneOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// readPump reads frames until the connection dies, feeding each one to
// onMessage and calling onClose exactly once at the end. The idle
// deadline is refreshed by pong replies to writePump's pings.
func (c *Conn) readPump(idleTimeout time.Duration, onMessage func([]byte), onClose func()) {
	defer func() {
		c.Close()
		onClose()
	}()

	_ = c.ws.SetReadDeadline(time.Now().Add(idleTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(idleTimeout))
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("read error", "conn", c.id, "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(idleTimeout))

		if msgType == websocket.TextMessage {
			onMessage(data)
		}
	}
}

// writePump drains the send queue and keeps the connection alive with
// periodic pings. Pings fire at 90% of the idle timeout so a healthy
// peer always refreshes its read deadline in time.
func (c *Conn) writePump(idleTimeout time.Duration) {
	ticker := time.NewTicker(idleTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			// Drain anything still queued, then flush a close frame on a
			// best-effort basis.
			_ = c.ws.SetWriteDeadline(time.Now().Add(time.Second))
			for {
				select {
				case data := <-c.send:
					_ = c.ws.WriteMessage(websocket.TextMessage, data)
				default:
					_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}
