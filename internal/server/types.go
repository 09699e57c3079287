// Package server defines the wire envelope and the interfaces the transport
// uses to reach the event router.
package server

import (
	"encoding/json"
	"strings"
)

// Envelope is the JSON frame exchanged in both directions:
// {"event": "<name>", "data": <payload>}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// EventHandler receives the inbound lifecycle callbacks of every connection.
// Calls for a single connection are made sequentially and in order.
type EventHandler interface {
	OnConnect(connID string)
	OnEvent(connID, event string, data json.RawMessage)
	OnDisconnect(connID string)
}

// RoomResolver maps a room name to the connections currently in it.
type RoomResolver interface {
	ConnectionsIn(room string) []string
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
