/*
Package client implements the terminal chat client.

This file defines the Client, which connects to a chat server, logs in either
automatically from the saved record or by asking the user, and then runs a
send task and a receive task until either of them finishes.
*/
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"linechat/internal/app/chat"
	"linechat/internal/pkg/logx"
)

const (
	// DefaultHandshakeTimeout bounds every wait for the server during login.
	DefaultHandshakeTimeout = 10 * time.Second

	// dialTimeout bounds a single connection attempt.
	dialTimeout = 5 * time.Second
)

var (
	// ErrCancelled is returned when the user gives up connecting.
	ErrCancelled = errors.New("connection cancelled")

	// errSavedLoginRejected ends an automatic login the server did not accept.
	errSavedLoginRejected = errors.New("saved credentials were rejected")
)

// Client is an interactive chat client bound to a terminal.
type Client struct {
	// input yields lines typed by the user.
	input *bufio.Scanner

	// out receives everything shown to the user.
	out io.Writer

	// configs persists the connection record.
	configs *ConfigStore

	// handshakeTimeout bounds each wait for a server line during login.
	handshakeTimeout time.Duration

	// now timestamps received messages.
	now func() time.Time

	// structured logger with client context.
	logger zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHandshakeTimeout overrides DefaultHandshakeTimeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.handshakeTimeout = d
	}
}

// WithClock sets the time source used to timestamp messages.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New returns a Client reading user input from in and writing to out.
func New(in io.Reader, out io.Writer, configs *ConfigStore, opts ...Option) *Client {
	c := &Client{
		input:            bufio.NewScanner(in),
		out:              &syncWriter{w: out},
		configs:          configs,
		handshakeTimeout: DefaultHandshakeTimeout,
		now:              time.Now,
		logger:           logx.Component("Client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Run logs in and chats until the connection or the user input ends.
func (c *Client) Run(ctx context.Context) error {
	saved, err := c.configs.Load()
	if err != nil {
		return err
	}

	var conn chat.LineConn
	if saved != nil && saved.HasCredentials() {
		c.printf("found saved config: %s\n", saved.Addr())
		conn, err = c.autoLogin(ctx, *saved)
		if err != nil {
			c.logger.Info().Err(err).Str("addr", saved.Addr()).Msg("Automatic login failed.")
			c.printf("automatic login failed: %v\n", err)
			conn = nil
		}
	}

	if conn == nil {
		if conn, err = c.interactiveLogin(ctx); err != nil {
			return err
		}
	}

	return c.chat(ctx, conn)
}

// autoLogin connects with the saved record and answers every prompt from it.
func (c *Client) autoLogin(ctx context.Context, cfg ServerConfig) (chat.LineConn, error) {
	conn, err := c.connect(ctx, cfg.Addr())
	if err != nil {
		return nil, err
	}

	if _, _, err := c.handshake(conn, savedAnswers{cfg: cfg, c: c}); err != nil {
		conn.Close()
		return nil, err
	}

	c.println("logged in automatically")
	return conn, nil
}

// interactiveLogin asks for the server address and credentials.
func (c *Client) interactiveLogin(ctx context.Context) (chat.LineConn, error) {
	cfg, conn, err := c.promptForConnection(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.configs.Save(cfg); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to save connection record.")
	}

	username, password, err := c.handshake(conn, promptAnswers{c: c})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake failed: %w", err)
	}

	cfg.Username, cfg.Password = username, password
	if err := c.configs.Save(cfg); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to save credentials.")
	}
	return conn, nil
}

// promptForConnection asks for host and port until a connection succeeds or the user gives up.
func (c *Client) promptForConnection(ctx context.Context) (ServerConfig, chat.LineConn, error) {
	for {
		host, err := c.ask(fmt.Sprintf("enter host (default: %s): ", DefaultHost))
		if err != nil {
			return ServerConfig{}, nil, err
		}
		host = strings.TrimSpace(host)
		if host == "" {
			host = DefaultHost
		}

		portText, err := c.ask(fmt.Sprintf("enter port (default: %d): ", DefaultPort))
		if err != nil {
			return ServerConfig{}, nil, err
		}
		port, convErr := strconv.Atoi(strings.TrimSpace(portText))
		if convErr != nil || port < 1 || port > 65535 {
			port = DefaultPort
		}

		cfg := ServerConfig{Host: host, Port: port}
		if conn, err := c.connect(ctx, cfg.Addr()); err == nil {
			return cfg, conn, nil
		}

		retry, err := c.ask("try again? (y/n): ")
		if err != nil || !strings.EqualFold(strings.TrimSpace(retry), "y") {
			c.println("exiting...")
			return ServerConfig{}, nil, ErrCancelled
		}
	}
}

func (c *Client) connect(ctx context.Context, addr string) (chat.LineConn, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.println("connection failed.")
		c.logger.Debug().Err(err).Str("addr", addr).Msg("Dial failed.")
		return nil, err
	}

	c.println("connected successfully!")
	return chat.NewTCPConn(conn), nil
}

// chat runs the send and receive tasks and returns when the first one ends.
func (c *Client) chat(ctx context.Context, conn chat.LineConn) error {
	defer conn.Close()

	c.println("to send type and press enter")

	done := make(chan error, 2)
	go func() { done <- c.sendLoop(conn) }()
	go func() { done <- c.receiveLoop(conn) }()

	select {
	case err := <-done:
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return nil
	}
}

// sendLoop forwards non-empty input lines to the server.
func (c *Client) sendLoop(conn chat.LineConn) error {
	for c.input.Scan() {
		line := c.input.Text()
		if line == "" {
			continue
		}
		if err := conn.WriteLine(line); err != nil {
			return err
		}
	}
	return c.input.Err()
}

// receiveLoop prints server lines until the connection ends.
func (c *Client) receiveLoop(conn chat.LineConn) error {
	for {
		line, err := conn.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.println("disconnected from server")
				return nil
			}
			return err
		}
		if line == "" {
			continue
		}
		c.println(FormatIncoming(line, c.now()))
	}
}

// FormatIncoming renders a server line for display. Lines of the form
// "name:body" become "name (HH:MM): body"; anything else is prefixed with the time.
func FormatIncoming(line string, at time.Time) string {
	stamp := at.Format("15:04")
	if name, body, ok := strings.Cut(line, ":"); ok {
		return fmt.Sprintf("%s (%s): %s", name, stamp, body)
	}
	return stamp + ": " + line
}

// ask shows prompt and reads one line of user input.
func (c *Client) ask(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	if !c.input.Scan() {
		if err := c.input.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return c.input.Text(), nil
}

func (c *Client) println(a ...any) {
	fmt.Fprintln(c.out, a...)
}

func (c *Client) printf(format string, a ...any) {
	fmt.Fprintf(c.out, format, a...)
}

// syncWriter serializes writes from the send and receive tasks.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
