// Package testhelpers provides common utilities for testing the chat relay.
//
// It starts fully wired relays on httptest servers, dials the socket endpoint
// with an allowed origin, and reads and writes event envelopes with deadlines
// so that a missing frame fails a test instead of hanging it.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/wsehl/chatrooms/internal/chat"
	"github.com/wsehl/chatrooms/internal/config"
	"github.com/wsehl/chatrooms/internal/presence"
	"github.com/wsehl/chatrooms/internal/server"
)

// ReadTimeout bounds every frame read performed by these helpers.
const ReadTimeout = 2 * time.Second

// Frame is an inbound envelope as seen by a test client.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ChatServer is a running relay with its collaborators exposed for
// assertions.
type ChatServer struct {
	*httptest.Server
	Config   *config.Config
	Hub      *server.Hub
	Registry *presence.Registry
	Router   *chat.Router
}

// NewChatServer wires a registry, router, hub and HTTP routes the way the
// process entry point does and serves them on a local listener. A nil cfg
// uses config.Default(). Everything is torn down when the test ends.
func NewChatServer(t *testing.T, cfg *config.Config) *ChatServer {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}

	registry := presence.NewRegistry()
	hub := server.NewHub(cfg.MaxMessageSize, nil)
	router := chat.NewRouter(registry, hub, nil)
	hub.Bind(router, router.Rooms())
	go hub.Run()

	srv := server.New(cfg, hub, registry, nil)
	ts := httptest.NewServer(srv.Routes())

	t.Cleanup(func() {
		_ = hub.Shutdown(2 * time.Second)
		ts.Close()
	})

	return &ChatServer{
		Server:   ts,
		Config:   cfg,
		Hub:      hub,
		Registry: registry,
		Router:   router,
	}
}

// SocketURL returns the ws:// URL of the socket endpoint.
func (s *ChatServer) SocketURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + config.SocketPath
}

// Dial connects to the socket endpoint with the first configured origin.
func (s *ChatServer) Dial(t *testing.T) *websocket.Conn {
	t.Helper()
	origin := config.DefaultClientURL
	if len(s.Config.AllowedOrigins) > 0 && s.Config.AllowedOrigins[0] != "*" {
		origin = s.Config.AllowedOrigins[0]
	}
	conn, resp, err := DialWithOrigin(s.SocketURL(), origin)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// DialWithOrigin opens a WebSocket connection sending origin as the Origin
// header. An empty origin omits the header.
func DialWithOrigin(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}
	return dialer.Dial(url, headers)
}

// Send writes one event envelope. A nil data omits the payload.
func Send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	frame := map[string]any{"event": event}
	if data != nil {
		frame["data"] = data
	}
	require.NoError(t, conn.WriteJSON(frame))
}

// Read returns the next frame or fails the test after ReadTimeout.
func Read(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(ReadTimeout)))
	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

// ReadEvent reads frames until one named event arrives and decodes its data
// into v. Other frames are discarded.
func ReadEvent(t *testing.T, conn *websocket.Conn, event string, v any) {
	t.Helper()
	for {
		frame := Read(t, conn)
		if frame.Event != event {
			continue
		}
		if v != nil {
			require.NoError(t, json.Unmarshal(frame.Data, v))
		}
		return
	}
}

// ExpectSilence fails the test if any frame arrives within d. The timed out
// read leaves conn unusable for further reads.
func ExpectSilence(t *testing.T, conn *websocket.Conn, d time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(d)))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame: %s", data)
}

// Eventually polls cond until it holds or the timeout elapses.
func Eventually(t *testing.T, cond func() bool, msgAndArgs ...any) {
	t.Helper()
	require.Eventually(t, cond, ReadTimeout, 10*time.Millisecond, msgAndArgs...)
}

// MakeRequest executes an HTTP request with a 5-second timeout and fails the
// test if it cannot be created or executed.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// CloseWebSocket sends a normal close frame and closes the connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
