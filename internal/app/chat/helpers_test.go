package chat

import (
	"bufio"
	"context"
	"io"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"linechat/internal/app/user"
)

const lineTimeout = 2 * time.Second

// testClient is the far end of a chat connection.
type testClient struct {
	t     *testing.T
	conn  net.Conn
	lines chan string
}

func newTestClient(t *testing.T, conn net.Conn) *testClient {
	t.Helper()

	c := &testClient{t: t, conn: conn, lines: make(chan string, 64)}
	go func() {
		defer close(c.lines)
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			c.lines <- scanner.Text()
		}
	}()
	t.Cleanup(func() { conn.Close() })
	return c
}

func (c *testClient) send(line string) {
	c.t.Helper()
	c.conn.SetWriteDeadline(time.Now().Add(lineTimeout))
	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		c.t.Fatalf("send %q: %v", line, err)
	}
}

func (c *testClient) expect(want ...string) {
	c.t.Helper()
	for _, w := range want {
		select {
		case got, ok := <-c.lines:
			if !ok {
				c.t.Fatalf("connection closed while waiting for %q", w)
			}
			if got != w {
				c.t.Fatalf("expected %q, got %q", w, got)
			}
		case <-time.After(lineTimeout):
			c.t.Fatalf("timed out waiting for %q", w)
		}
	}
}

func (c *testClient) expectNothing() {
	c.t.Helper()
	select {
	case got, ok := <-c.lines:
		if ok {
			c.t.Fatalf("expected silence, got %q", got)
		}
	case <-time.After(150 * time.Millisecond):
	}
}

func (c *testClient) expectClosed() {
	c.t.Helper()
	deadline := time.After(lineTimeout)
	for {
		select {
		case got, ok := <-c.lines:
			if !ok {
				return
			}
			c.t.Fatalf("expected close, got %q", got)
		case <-deadline:
			c.t.Fatal("connection still open")
		}
	}
}

// login runs the handshake for an existing or new user and consumes the greeting.
func (c *testClient) login(username, password string, register bool) {
	c.t.Helper()
	c.expect(PromptUsername)
	c.send(username)
	if register {
		c.expect(PromptRegister)
		c.send("y")
	}
	c.expect(PromptPassword)
	c.send(password)
	c.expect(MsgOK)
	c.expectPrefix(UsersOnlinePrefix)
	c.expect(MsgWelcome)
}

func (c *testClient) expectPrefix(prefix string) string {
	c.t.Helper()
	select {
	case got, ok := <-c.lines:
		if !ok {
			c.t.Fatalf("connection closed while waiting for %q...", prefix)
		}
		if !strings.HasPrefix(got, prefix) {
			c.t.Fatalf("expected %q..., got %q", prefix, got)
		}
		return got
	case <-time.After(lineTimeout):
		c.t.Fatalf("timed out waiting for %q...", prefix)
	}
	return ""
}

// testServer bundles a Server with a file-backed store.
type testServer struct {
	*Server
	store *user.Store
	ctx   context.Context
}

func newTestServer(t *testing.T, cfg SessionConfig) *testServer {
	t.Helper()

	store := user.NewStore(user.NewFileBackend(filepath.Join(t.TempDir(), "users.json")))
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load store: %v", err)
	}

	registry := NewRegistry()
	srv := NewServer(store, registry, NewRouter(registry), WithSessionConfig(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		srv.DisconnectAll()
	})

	return &testServer{Server: srv, store: store, ctx: ctx}
}

// connect attaches a client over net.Pipe.
func (ts *testServer) connect(t *testing.T) *testClient {
	t.Helper()

	serverSide, clientSide := net.Pipe()
	go ts.ServeConn(ts.ctx, NewTCPConn(serverSide))
	return newTestClient(t, clientSide)
}

func (ts *testServer) register(t *testing.T, username, password string) {
	t.Helper()
	if _, err := ts.store.Add(context.Background(), username, password); err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
}

// waitFor polls cond until it holds or the line timeout passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(lineTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// fakeMember records delivered lines.
type fakeMember struct {
	name   string
	mu     sync.Mutex
	lines  []string
	full   bool
	closed int
}

func (m *fakeMember) Username() string { return m.name }

func (m *fakeMember) Deliver(line string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.full {
		return false
	}
	m.lines = append(m.lines, line)
	return true
}

func (m *fakeMember) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *fakeMember) received() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lines...)
}

func (m *fakeMember) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
