package chat

import (
	"fmt"
	"time"

	"github.com/wsehl/chatrooms/internal/presence"
)

// State is the lifecycle stage of one connection.
type State int

const (
	// StateConnected means the transport is open but join has not completed.
	StateConnected State = iota
	// StateJoined means a session exists and has a room.
	StateJoined
	// StateClosed is terminal; every further event is ignored.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Op is the registry mutation a transition asks for.
type Op int

const (
	OpNone Op = iota
	OpCreate
	OpSetRoom
	OpSetTyping
	OpRemove
)

// Scope selects the recipients of an effect.
type Scope int

const (
	ToSelf Scope = iota
	ToRoom
	ToRoomExceptSelf
	ToAll
)

// Projection names a payload that must be computed from the room index after
// the registry mutation has been committed.
type Projection int

const (
	ProjectNone Projection = iota
	ProjectMembers
	ProjectTyping
	ProjectActiveUsers
)

// Effect is one outbound emission.
type Effect struct {
	Scope   Scope
	Room    string
	Event   string
	Payload any
	Project Projection
	// Username is the actor reported in typing payloads.
	Username string
}

// Transition is the result of reducing one event.
type Transition struct {
	Next    State
	Op      Op
	Session presence.Session
	Effects []Effect
	// Ignored is set when the event had no effect at all; Reason says why.
	Ignored bool
	Reason  string
}

func ignore(state State, reason string) Transition {
	return Transition{Next: state, Ignored: true, Reason: reason}
}

// Reduce computes the transition for ev arriving on connection id in state.
// session is the connection's current session and is only meaningful when
// state is StateJoined. Reduce has no side effects.
func Reduce(id string, state State, session presence.Session, ev Event, now time.Time) Transition {
	if state == StateClosed {
		return ignore(state, "connection closed")
	}

	switch ev.Name {
	case EventLogout, EventDisconnect:
		return reduceLeave(state, session, now)
	case EventJoin:
		if state != StateConnected {
			return ignore(state, "already joined")
		}
		return reduceJoin(id, ev, now)
	}

	if state != StateJoined {
		return ignore(state, "not joined")
	}

	switch ev.Name {
	case EventMessage:
		return reduceMessage(session, ev, now)
	case EventChangeRoom:
		return reduceChangeRoom(session, ev, now)
	case EventTyping:
		return reduceTyping(session, true)
	case EventStopTyping:
		return reduceTyping(session, false)
	case EventInit:
		return Transition{
			Next:    StateJoined,
			Session: session,
			Effects: []Effect{{Scope: ToAll, Event: EventGetUsers, Project: ProjectActiveUsers}},
		}
	default:
		return ignore(state, "unknown event")
	}
}

func reduceJoin(id string, ev Event, now time.Time) Transition {
	req, ok := decodeJoin(ev.Data)
	if !ok {
		return ignore(StateConnected, "malformed join payload")
	}
	if req.Username == "" || req.Room == "" {
		return ignore(StateConnected, "join requires username and room")
	}

	s := presence.Session{ConnectionID: id, Username: req.Username, Room: req.Room}
	return Transition{
		Next:    StateJoined,
		Op:      OpCreate,
		Session: s,
		Effects: []Effect{
			{Scope: ToSelf, Event: EventMessage, Payload: systemMessage(fmt.Sprintf("Welcome to %s, %s!", s.Room, s.Username), now)},
			{Scope: ToSelf, Event: EventLogin, Payload: LoginPayload{}},
			{Scope: ToRoomExceptSelf, Room: s.Room, Event: EventMessage, Payload: systemMessage(s.Username+" has joined the chat", now)},
			{Scope: ToRoom, Room: s.Room, Event: EventRoomUsers, Project: ProjectMembers},
		},
	}
}

func reduceMessage(session presence.Session, ev Event, now time.Time) Transition {
	req, ok := decodeMessage(ev.Data)
	if !ok {
		return ignore(StateJoined, "malformed message payload")
	}
	return Transition{
		Next:    StateJoined,
		Session: session,
		Effects: []Effect{
			{Scope: ToRoom, Room: session.Room, Event: EventMessage, Payload: chatMessage(session.Username, req.Message, now)},
		},
	}
}

func reduceChangeRoom(session presence.Session, ev Event, now time.Time) Transition {
	req, ok := decodeChangeRoom(ev.Data)
	if !ok {
		return ignore(StateJoined, "malformed change room payload")
	}
	if req.Room == "" || req.Room == session.Room {
		return ignore(StateJoined, "room unchanged")
	}

	old := session.Room
	next := session
	next.Room = req.Room
	next.Typing = false

	effects := []Effect{
		{Scope: ToRoom, Room: next.Room, Event: EventMessage, Payload: systemMessage(fmt.Sprintf("%s has changed room to %s", next.Username, next.Room), now)},
		{Scope: ToRoom, Room: next.Room, Event: EventRoomUsers, Project: ProjectMembers},
		{Scope: ToRoom, Room: old, Event: EventRoomUsers, Project: ProjectMembers},
	}
	if session.Typing {
		effects = append(effects, Effect{Scope: ToRoom, Room: old, Event: EventStopTyping, Project: ProjectTyping, Username: session.Username})
	}

	return Transition{Next: StateJoined, Op: OpSetRoom, Session: next, Effects: effects}
}

func reduceTyping(session presence.Session, typing bool) Transition {
	event := EventStopTyping
	if typing {
		event = EventTyping
	}

	next := session
	next.Typing = typing
	return Transition{
		Next:    StateJoined,
		Op:      OpSetTyping,
		Session: next,
		Effects: []Effect{
			{Scope: ToRoom, Room: session.Room, Event: event, Project: ProjectTyping, Username: session.Username},
		},
	}
}

// reduceLeave handles logout and transport disconnect. The departure is only
// announced from StateJoined; the router additionally requires the registry
// removal to succeed so that it is announced at most once.
func reduceLeave(state State, session presence.Session, now time.Time) Transition {
	if state != StateJoined {
		return Transition{Next: StateClosed}
	}

	effects := []Effect{
		{Scope: ToRoom, Room: session.Room, Event: EventMessage, Payload: systemMessage(session.Username+" has left the chat", now)},
		{Scope: ToRoom, Room: session.Room, Event: EventRoomUsers, Project: ProjectMembers},
	}
	if session.Typing {
		effects = append(effects, Effect{Scope: ToRoom, Room: session.Room, Event: EventStopTyping, Project: ProjectTyping, Username: session.Username})
	}
	return Transition{Next: StateClosed, Op: OpRemove, Session: session, Effects: effects}
}
