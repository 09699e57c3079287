// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/wsehl/chatrooms/internal/config"
)

// SessionCounter reports the number of joined sessions.
type SessionCounter interface {
	Len() int
}

// Server holds the HTTP side of the relay: the upgrader, the hub new
// connections are handed to, and the status endpoints.
type Server struct {
	hub      *Hub
	sessions SessionCounter
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// StatusResponse is the body served by the JSON health endpoint.
type StatusResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Sessions    int    `json:"sessions"`
}

// New creates a Server. A nil logger falls back to slog.Default().
func New(cfg *config.Config, hub *Hub, sessions SessionCounter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	policy := newOriginPolicy(cfg.AllowedOrigins, logger)

	s := &Server{
		hub:      hub,
		sessions: sessions,
		logger:   logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if policy.allows(r) {
				return true
			}
			logger.Warn("rejected websocket origin", "origin", r.Header.Get("Origin"), "addr", r.RemoteAddr)
			return false
		},
	}
	return s
}

// WebSocketHandler handles WebSocket upgrade requests. It validates that the
// request uses the GET method, upgrades the connection, and hands the new
// client to the hub, which starts its pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr, s.hub.maxMessageSize)
	if !s.hub.Register(client) {
		s.logger.Debug("hub stopped; closing new connection", "addr", r.RemoteAddr)
		_ = conn.Close()
	}
}

// HealthHandler returns a plain text liveness message.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "Chat server is running!")
}

// StatusHandler reports open connections and joined sessions as JSON.
func (s *Server) StatusHandler(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Status:      "ok",
		Connections: s.hub.ClientCount(),
	}
	if s.sessions != nil {
		resp.Sessions = s.sessions.Len()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("error writing status response", "error", err)
	}
}

// TestPageHandler serves an HTML page that joins a room over the socket
// endpoint and shows every event it receives.
func (s *Server) TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPage); err != nil {
		s.logger.Warn("error writing test page", "error", err)
	}
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>Chat Rooms Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #events {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
        }
        input[type="text"] { width: 160px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; }
    </style>
</head>
<body>
    <h1>Chat Rooms Test</h1>

    <div>
        <input type="text" id="username" placeholder="username">
        <input type="text" id="room" placeholder="room" value="lobby">
        <button onclick="join()">Join</button>
        <button onclick="changeRoom()">Change room</button>
        <button onclick="emit('logout')">Logout</button>
    </div>
    <div>
        <input type="text" id="message" placeholder="message" oninput="typing()">
        <button onclick="send()">Send</button>
        <button onclick="emit('init')">Active users</button>
    </div>

    <div id="events"></div>

    <script>
        const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
        const ws = new WebSocket(scheme + location.host + '/socket/');
        const events = document.getElementById('events');
        let typingTimer = null;

        function log(text) {
            const line = document.createElement('div');
            line.textContent = text;
            events.appendChild(line);
            events.scrollTop = events.scrollHeight;
        }

        function emit(event, data) {
            ws.send(JSON.stringify({event: event, data: data}));
        }

        function join() {
            emit('join', {
                username: document.getElementById('username').value,
                room: document.getElementById('room').value
            });
        }

        function changeRoom() {
            emit('change room', {room: document.getElementById('room').value});
        }

        function send() {
            const input = document.getElementById('message');
            emit('message', {message: input.value});
            emit('stop typing');
            input.value = '';
        }

        function typing() {
            if (typingTimer === null) {
                emit('typing');
            } else {
                clearTimeout(typingTimer);
            }
            typingTimer = setTimeout(function() {
                emit('stop typing');
                typingTimer = null;
            }, 1500);
        }

        ws.onopen = function() { log('connected'); };
        ws.onclose = function() { log('disconnected'); };
        ws.onmessage = function(msg) { log(msg.data); };
    </script>
</body>
</html>`
