package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/chatline/internal/config"
	"github.com/Tyrowin/chatline/internal/session"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const testOrigin = "http://localhost:8080"

var testLog = logs.GetLoggerFromLevel(slog.LevelDebug)

type testEnv struct {
	hub    *Hub
	server *httptest.Server
	wsURL  string
	cfg    config.Config
}

// newTestEnv starts a hub and an httptest server on the full route table.
func newTestEnv(t *testing.T, opts session.Options, tweak func(*config.Config)) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.AllowedOrigins = []string{testOrigin}
	cfg.RateLimit.Burst = 100
	if tweak != nil {
		tweak(&cfg)
	}

	hub := NewHub(opts, nil, cfg.TypingSweepInterval, testLog)
	go hub.Run()
	srv := httptest.NewServer(SetupRoutes(hub, cfg))
	t.Cleanup(func() {
		srv.Close()
		_ = hub.Shutdown(time.Second)
	})

	return &testEnv{
		hub:    hub,
		server: srv,
		wsURL:  "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		cfg:    cfg,
	}
}

// dial opens a websocket with an allowed origin.
func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("Origin", testOrigin)
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(e.wsURL, header)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// join dials, joins as id and waits for the join to settle.
func (e *testEnv) join(t *testing.T, id string) *websocket.Conn {
	t.Helper()
	conn := e.dial(t)
	sendFrame(t, conn, "join", map[string]any{"identity": map[string]string{"id": id, "name": id}})
	readUntil(t, conn, "history")
	readUntil(t, conn, "presence_changed")
	return conn
}

type received struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func sendFrame(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": typ, "payload": payload}))
}

// readUntil skips frames until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var frame received
		require.NoError(t, conn.ReadJSON(&frame), "waiting for %s", typ)
		if frame.Type == typ {
			return frame
		}
	}
}

func decode[T any](t *testing.T, frame received) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(frame.Payload, &out))
	return out
}
