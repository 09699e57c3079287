package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsehl/chatrooms/internal/config"
	"github.com/wsehl/chatrooms/internal/server"
	"github.com/wsehl/chatrooms/internal/testhelpers"
)

func TestHealthHandler(t *testing.T) {
	ts := testhelpers.NewChatServer(t, nil)

	resp := testhelpers.MakeRequest(t, http.MethodGet, ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Chat server is running!", string(body))
}

func TestUnknownPathIsNotFound(t *testing.T) {
	ts := testhelpers.NewChatServer(t, nil)

	resp := testhelpers.MakeRequest(t, http.MethodGet, ts.URL+"/nonexistent")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketHandlerRejectsNonGet(t *testing.T) {
	ts := testhelpers.NewChatServer(t, nil)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			resp := testhelpers.MakeRequest(t, method, ts.URL+config.SocketPath)
			assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		})
	}
}

func TestWebSocketHandlerRequiresUpgrade(t *testing.T) {
	ts := testhelpers.NewChatServer(t, nil)

	resp := testhelpers.MakeRequest(t, http.MethodGet, ts.URL+config.SocketPath)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, ts.Hub.ClientCount())
}

func TestWebSocketHandlerChecksOrigin(t *testing.T) {
	ts := testhelpers.NewChatServer(t, nil)

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"configured client", config.DefaultClientURL, true},
		{"foreign origin", "http://evil.example.com", false},
		{"missing origin", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := testhelpers.DialWithOrigin(ts.SocketURL(), tt.origin)
			if resp != nil {
				_ = resp.Body.Close()
			}
			if tt.ok {
				require.NoError(t, err)
				_ = conn.Close()
				return
			}
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}

func TestWebSocketHandlerAllowsSameOrigin(t *testing.T) {
	ts := testhelpers.NewChatServer(t, nil)

	conn, resp, err := testhelpers.DialWithOrigin(ts.SocketURL(), ts.URL)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	_ = conn.Close()
}

func TestStatusHandlerReportsConnectionsAndSessions(t *testing.T) {
	ts := testhelpers.NewChatServer(t, nil)

	status := func() server.StatusResponse {
		resp := testhelpers.MakeRequest(t, http.MethodGet, ts.URL+"/healthz")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		var s server.StatusResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
		return s
	}

	assert.Equal(t, server.StatusResponse{Status: "ok"}, status())

	joined := ts.Dial(t)
	testhelpers.Send(t, joined, "join", map[string]string{"username": "alice", "room": "lobby"})
	testhelpers.ReadEvent(t, joined, "roomUsers", nil)
	ts.Dial(t)

	testhelpers.Eventually(t, func() bool {
		s := status()
		return s.Connections == 2 && s.Sessions == 1
	})
}

func TestMetricsEndpoint(t *testing.T) {
	ts := testhelpers.NewChatServer(t, nil)

	resp := testhelpers.MakeRequest(t, http.MethodGet, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "chat_connections_active")
	assert.Contains(t, string(body), "chat_sessions_joined")
}

func TestTestPageHandler(t *testing.T) {
	ts := testhelpers.NewChatServer(t, nil)

	resp := testhelpers.MakeRequest(t, http.MethodGet, ts.URL+"/test")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "/socket/")
}
