/*
Package chat contains the line protocol server.

This file defines the WebSocket implementation of LineConn. Every text frame
carries exactly one line in either direction, so browser clients speak the
same handshake and message loop as TCP clients.
*/
package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10
)

// wsConn implements LineConn over a gorilla WebSocket connection.
type wsConn struct {
	// underlying WebSocket connection object.
	conn *websocket.Conn

	// writeMu serializes data frames; control frames use WriteControl.
	writeMu sync.Mutex

	// stop ends the keepalive goroutine.
	stop chan struct{}

	// closeOnce makes Close idempotent.
	closeOnce sync.Once

	// deadlineMu protects deadline.
	deadlineMu sync.Mutex

	// deadline is the caller's read deadline. Pongs never extend past it.
	deadline time.Time
}

// NewWSConn wraps an upgraded WebSocket connection as a LineConn and starts
// its ping loop. Peers that stop answering pings time out on read.
func NewWSConn(conn *websocket.Conn) LineConn {
	c := &wsConn{
		conn: conn,
		stop: make(chan struct{}),
	}

	conn.SetReadLimit(maxLineBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(c.pongDeadline())
	})

	go c.keepalive()

	return c
}

func (c *wsConn) ReadLine() (string, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
}

func (c *wsConn) WriteLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

// SetReadDeadline applies t; clearing it falls back to the pong deadline.
func (c *wsConn) SetReadDeadline(t time.Time) error {
	c.deadlineMu.Lock()
	c.deadline = t
	c.deadlineMu.Unlock()

	return c.conn.SetReadDeadline(c.pongDeadline())
}

// pongDeadline returns the keepalive deadline capped by the caller's deadline.
func (c *wsConn) pongDeadline() time.Time {
	next := time.Now().Add(pongWait)

	c.deadlineMu.Lock()
	defer c.deadlineMu.Unlock()

	if !c.deadline.IsZero() && c.deadline.Before(next) {
		return c.deadline
	}
	return next
}

func (c *wsConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)

		closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(writeWait))

		err = c.conn.Close()
	})
	return err
}

// keepalive sends a Ping every pingPeriod until the connection is closed.
func (c *wsConn) keepalive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.Close()
				return
			}
		}
	}
}
