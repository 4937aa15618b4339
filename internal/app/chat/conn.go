/*
Package chat contains the line protocol server.

This file defines LineConn, the duplex line channel a Session talks through,
and its implementation over a raw TCP connection.
*/
package chat

import (
	"bufio"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

const (
	// timeout duration for writing one line to a connection.
	writeWait = 10 * time.Second

	// maximum allowed size (in bytes) of a line sent by the client.
	maxLineBytes = 8192
)

// LineConn is a newline-delimited text channel to one client.
// ReadLine is called from a single goroutine; WriteLine and Close may be
// called concurrently with it and with each other.
type LineConn interface {
	// ReadLine blocks for the next line, without its terminator.
	// It returns io.EOF when the peer closes the connection.
	ReadLine() (string, error)

	// WriteLine sends line followed by a line terminator.
	WriteLine(line string) error

	// SetReadDeadline bounds pending and future ReadLine calls. A zero value clears it.
	SetReadDeadline(t time.Time) error

	// RemoteAddr returns the peer address in host:port form.
	RemoteAddr() string

	// Close releases the transport. It is safe to call more than once.
	Close() error
}

// tcpConn implements LineConn over a net.Conn.
type tcpConn struct {
	// underlying network connection.
	conn net.Conn

	// scanner splits inbound bytes into lines.
	scanner *bufio.Scanner

	// writeMu serializes writers so lines never interleave.
	writeMu sync.Mutex

	// closeOnce makes Close idempotent.
	closeOnce sync.Once

	// closeErr is the result of the first Close.
	closeErr error
}

// NewTCPConn wraps conn as a LineConn.
func NewTCPConn(conn net.Conn) LineConn {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 1024), maxLineBytes)

	return &tcpConn{
		conn:    conn,
		scanner: scanner,
	}
}

func (c *tcpConn) ReadLine() (string, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSuffix(c.scanner.Text(), "\r"), nil
}

func (c *tcpConn) WriteLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	_, err := io.WriteString(c.conn, line+"\n")
	return err
}

func (c *tcpConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *tcpConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *tcpConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
