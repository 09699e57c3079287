package chat

import (
	"encoding/json"
	"strings"
	"time"
)

// Inbound event names.
const (
	EventJoin       = "join"
	EventMessage    = "message"
	EventChangeRoom = "change room"
	EventTyping     = "typing"
	EventStopTyping = "stop typing"
	EventInit       = "init"
	EventLogout     = "logout"
	// EventDisconnect is synthesised by the router when the transport reports
	// the connection gone; clients never send it.
	EventDisconnect = "disconnect"
)

// Outbound event names. "message", "typing" and "stop typing" share their
// inbound names.
const (
	EventRoomUsers = "roomUsers"
	EventLogin     = "login"
	EventGetUsers  = "get users"
)

// Message kinds carried in MessagePayload.Type.
const (
	KindDefault = "default"
	KindSystem  = "system"
)

// dateLayout matches JavaScript's Date.prototype.toISOString.
const dateLayout = "2006-01-02T15:04:05.000Z07:00"

// Event is one decoded inbound event.
type Event struct {
	Name string
	Data json.RawMessage
}

// JoinRequest is the payload of a join event.
type JoinRequest struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

// MessageRequest is the payload of a chat message event.
type MessageRequest struct {
	Message string `json:"message"`
}

// ChangeRoomRequest is the payload of a change room event.
type ChangeRoomRequest struct {
	Room string `json:"room"`
}

// MessagePayload is the outbound message event.
type MessagePayload struct {
	Username string `json:"username,omitempty"`
	Message  string `json:"message"`
	Type     string `json:"type"`
	Date     string `json:"date"`
}

// RoomUsersPayload carries the current member list of a room.
type RoomUsersPayload struct {
	Room  string   `json:"room"`
	Users []string `json:"users"`
}

// TypingPayload is sent for both typing and stop typing.
type TypingPayload struct {
	Username    string   `json:"username"`
	TypingUsers []string `json:"typingUsers"`
}

// ActiveUsersPayload answers an init event.
type ActiveUsersPayload struct {
	ActiveUsers []string `json:"activeUsers"`
}

// LoginPayload acknowledges a successful join.
type LoginPayload struct{}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func chatMessage(username, text string, now time.Time) MessagePayload {
	return MessagePayload{
		Username: username,
		Message:  text,
		Type:     KindDefault,
		Date:     formatDate(now),
	}
}

func systemMessage(text string, now time.Time) MessagePayload {
	return MessagePayload{
		Message: text,
		Type:    KindSystem,
		Date:    formatDate(now),
	}
}

// decodeJoin accepts only an object payload; a join must name its room.
func decodeJoin(data json.RawMessage) (JoinRequest, bool) {
	var req JoinRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return JoinRequest{}, false
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Room = strings.TrimSpace(req.Room)
	return req, true
}

func decodeMessage(data json.RawMessage) (MessageRequest, bool) {
	var req MessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		var text string
		if json.Unmarshal(data, &text) != nil {
			return MessageRequest{}, false
		}
		req.Message = text
	}
	return req, true
}

func decodeChangeRoom(data json.RawMessage) (ChangeRoomRequest, bool) {
	var req ChangeRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		var room string
		if json.Unmarshal(data, &room) != nil {
			return ChangeRoomRequest{}, false
		}
		req.Room = room
	}
	req.Room = strings.TrimSpace(req.Room)
	return req, true
}
