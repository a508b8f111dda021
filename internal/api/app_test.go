package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pawhaven/pawchat/internal/config"
	"github.com/pawhaven/pawchat/internal/database"
	"github.com/pawhaven/pawchat/internal/server"
	"github.com/pawhaven/pawchat/internal/stats"
	"github.com/pawhaven/pawchat/internal/testutil"
)

var testSigningKey = []byte("test-signing-key")

type testApp struct {
	app      *ChatApp
	registry *server.Registry
	ts       *httptest.Server
}

// newTestApp wires a full app around the given repository double and
// serves it from an httptest server.
func newTestApp(t *testing.T, db database.ChatRepository) *testApp {
	logger := testutil.TestLogger(t)
	mux := http.NewServeMux()

	su := stats.NewStatsUpdater(mux)
	su.Run()
	t.Cleanup(su.Stop)

	registry := server.NewRegistry(logger)
	broadcaster := server.NewBroadcaster(logger, registry, su)
	chat := server.NewChatService(logger, db, broadcaster, su)
	resolver := server.NewResolver(logger, db, testSigningKey)
	session := server.NewSessionHandler(logger, resolver, registry, chat, su)

	cfg := &config.Config{
		ServerAddr: "localhost:0",
		SigningKey: testSigningKey,
	}

	app := NewChatApp(mux, logger, db, resolver, chat, session, cfg)

	ts := httptest.NewServer(app.mux.Handler)
	t.Cleanup(ts.Close)

	return &testApp{app: app, registry: registry, ts: ts}
}

func (ta *testApp) wsURL(path string) string {
	return "ws" + strings.TrimPrefix(ta.ts.URL, "http") + path
}

// dialWs opens a socket to the given path and fails the test on a
// handshake error.
func dialWs(t *testing.T, ta *testApp, path string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(ta.wsURL(path), nil)
	if err != nil {
		t.Fatalf("failed to dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) *server.ServerEvent {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event server.ServerEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}

	return &event
}
