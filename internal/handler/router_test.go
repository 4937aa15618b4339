package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"linechat/internal/app/chat"
	"linechat/internal/app/user"
	"linechat/internal/configs"
	"linechat/internal/pkg/errs"
	"linechat/internal/pkg/limiter"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestDeps(t *testing.T, env string) *AppDeps {
	t.Helper()

	store := user.NewStore(user.NewFileBackend(filepath.Join(t.TempDir(), "users.json")))
	if err := store.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	registry := chat.NewRegistry()
	server := chat.NewServer(store, registry, chat.NewRouter(registry))
	t.Cleanup(server.DisconnectAll)

	return &AppDeps{
		Server:   server,
		Registry: registry,
		Config: &configs.AppConfig{
			Environment:    env,
			AllowedOrigins: []string{"https://chat.example.com"},
		},
		BaseContext: context.Background(),
	}
}

func getJSON(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s: %v (%s)", path, err, rec.Body.String())
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	rec, body := getJSON(t, Router(newTestDeps(t, "production")), "/health")

	if rec.Code != http.StatusOK || body.Code != 0 {
		t.Fatalf("unexpected response %d %+v", rec.Code, body)
	}
	if !strings.Contains(string(body.Data), `"status":"ok"`) {
		t.Errorf("unexpected data %s", body.Data)
	}
}

// wsDial opens a WebSocket to srv and returns a line reader for it.
func wsDial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func wsExpect(t *testing.T, conn *websocket.Conn, want ...string) {
	t.Helper()
	for _, w := range want {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q: %v", w, err)
		}
		if string(data) != w {
			t.Fatalf("expected %q, got %q", w, data)
		}
	}
}

func wsSend(t *testing.T, conn *websocket.Conn, line string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		t.Fatalf("send %q: %v", line, err)
	}
}

func TestWebSocketHandshakeAndOnlineList(t *testing.T) {
	deps := newTestDeps(t, "production")
	srv := httptest.NewServer(Router(deps))
	defer srv.Close()

	conn := wsDial(t, srv, nil)
	wsExpect(t, conn, chat.PromptUsername)
	wsSend(t, conn, "alice")
	wsExpect(t, conn, chat.PromptRegister)
	wsSend(t, conn, "y")
	wsExpect(t, conn, chat.PromptPassword)
	wsSend(t, conn, "pw")
	wsExpect(t, conn, chat.MsgOK, "users online: no other users online.", chat.MsgWelcome)

	_, body := getJSON(t, Router(deps), "/api/online")
	var online OnlineUsers
	if err := json.Unmarshal(body.Data, &online); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(OnlineUsers{Count: 1, Connections: 1, Users: []string{"alice"}}, online); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestOnlineUsersEmpty(t *testing.T) {
	_, body := getJSON(t, Router(newTestDeps(t, "production")), "/api/online")
	if string(body.Data) != `{"count":0,"connections":0,"users":[]}` {
		t.Errorf("unexpected data %s", body.Data)
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	srv := httptest.NewServer(Router(newTestDeps(t, "production")))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, res, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	if err == nil {
		t.Fatal("foreign origin was upgraded")
	}
	if res == nil || res.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %v", res)
	}

	conn := wsDial(t, srv, http.Header{"Origin": {"https://chat.example.com"}})
	wsExpect(t, conn, chat.PromptUsername)
}

func TestWebSocketRateLimited(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := newTestDeps(t, "production")
	deps.Limiter = limiter.NewIPRateLimiter(ctx, rate.Limit(0.001), 1)
	h := Router(deps)

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if first.Code == http.StatusTooManyRequests {
		t.Fatal("first request was rate limited")
	}

	rec, body := getJSON(t, h, "/ws")
	if rec.Code != http.StatusTooManyRequests || body.Code != errs.ErrRateLimitExceeded {
		t.Errorf("expected 429 with code %d, got %d %+v", errs.ErrRateLimitExceeded, rec.Code, body)
	}
}
