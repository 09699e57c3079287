package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/wsehl/chatrooms/internal/metrics"
	"github.com/wsehl/chatrooms/internal/presence"
)

// Transport is the outbound side of the persistent connection layer. Every
// method is fire-and-forget: delivery failures are handled by the transport.
type Transport interface {
	EmitToOne(connID, event string, payload any)
	// EmitToRoom delivers to every connection in room except exclude, which
	// may be empty.
	EmitToRoom(room, event string, payload any, exclude string)
	EmitToAll(event string, payload any)
	// Close terminates the connection; its disconnect is reported back
	// through OnDisconnect as usual.
	Close(connID string)
}

// Option configures a Router.
type Option func(*Router)

// WithClock overrides the time source used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// Router drives the per-connection state machine. It is the only writer of
// the registry. Events of one connection must be delivered sequentially;
// different connections may call in concurrently.
type Router struct {
	registry  *presence.Registry
	index     *presence.RoomIndex
	transport Transport
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	conns map[string]State
}

// NewRouter creates a Router over registry. A nil logger falls back to
// slog.Default().
func NewRouter(registry *presence.Registry, transport Transport, logger *slog.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		registry:  registry,
		index:     presence.NewRoomIndex(registry),
		transport: transport,
		logger:    logger,
		now:       time.Now,
		conns:     make(map[string]State),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnConnect records a new transport connection in StateConnected.
func (r *Router) OnConnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[connID]; exists {
		r.logger.Warn("connection reported twice", "conn", connID)
		return
	}
	r.conns[connID] = StateConnected
}

// OnEvent handles one inbound event. It never fails; anything that cannot be
// applied is logged and dropped.
func (r *Router) OnEvent(connID, name string, data json.RawMessage) {
	if name == EventDisconnect {
		r.ignored(connID, name, "reserved event name")
		return
	}
	r.handle(connID, Event{Name: name, Data: data})
}

// OnDisconnect processes a transport-level disconnect and forgets the
// connection. It is safe to call after a logout and more than once.
func (r *Router) OnDisconnect(connID string) {
	r.handle(connID, Event{Name: EventDisconnect})

	r.mu.Lock()
	delete(r.conns, connID)
	r.mu.Unlock()
}

// State reports the lifecycle state of a known connection.
func (r *Router) State(connID string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.conns[connID]
	return state, ok
}

// Rooms exposes the room index the router resolves recipients with.
func (r *Router) Rooms() *presence.RoomIndex {
	return r.index
}

func (r *Router) handle(connID string, ev Event) {
	state, known := r.State(connID)
	if !known {
		state = StateClosed
	}

	var session presence.Session
	if state == StateJoined {
		s, ok := r.registry.Get(connID)
		if !ok {
			r.logger.Warn("joined connection has no session", "conn", connID)
			state = StateClosed
		}
		session = s
	}

	tr := Reduce(connID, state, session, ev, r.now())
	if tr.Ignored {
		r.ignored(connID, ev.Name, tr.Reason)
		return
	}

	committed := r.commit(connID, tr)
	if committed || tr.Next == StateClosed {
		r.setState(connID, tr.Next)
	}
	if committed {
		metrics.EventsReceived.WithLabelValues(ev.Name).Inc()
		r.emit(connID, tr.Effects)
	} else {
		r.ignored(connID, ev.Name, "registry change rejected")
	}

	if ev.Name == EventLogout {
		r.transport.Close(connID)
	}
}

func (r *Router) commit(connID string, tr Transition) bool {
	switch tr.Op {
	case OpNone:
		return true

	case OpCreate:
		if err := r.registry.Put(tr.Session); err != nil {
			r.logger.Warn("join rejected", "conn", connID, "error", err)
			return false
		}
		metrics.SessionsJoined.Inc()
		r.logger.Info("user joined", "conn", connID, "username", tr.Session.Username, "room", tr.Session.Room)
		return true

	case OpSetRoom, OpSetTyping:
		next := tr.Session
		_, _, err := r.registry.Update(connID, func(s *presence.Session) {
			s.Room = next.Room
			s.Typing = next.Typing
		})
		if err != nil {
			if errors.Is(err, presence.ErrStaleSession) {
				r.logger.Debug("update for removed session", "conn", connID)
			}
			return false
		}
		if tr.Op == OpSetRoom {
			r.logger.Info("user changed room", "conn", connID, "username", next.Username, "room", next.Room)
		}
		return true

	case OpRemove:
		removed, ok := r.registry.Remove(connID)
		if !ok {
			return false
		}
		metrics.SessionsJoined.Dec()
		r.logger.Info("user left", "conn", connID, "username", removed.Username, "room", removed.Room)
		return true
	}
	return false
}

func (r *Router) setState(connID string, state State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; ok {
		r.conns[connID] = state
	}
}

func (r *Router) emit(connID string, effects []Effect) {
	for _, e := range effects {
		payload := r.resolve(e)
		switch e.Scope {
		case ToSelf:
			r.transport.EmitToOne(connID, e.Event, payload)
		case ToRoom:
			r.transport.EmitToRoom(e.Room, e.Event, payload, "")
		case ToRoomExceptSelf:
			r.transport.EmitToRoom(e.Room, e.Event, payload, connID)
		case ToAll:
			r.transport.EmitToAll(e.Event, payload)
		}
	}
}

func (r *Router) resolve(e Effect) any {
	switch e.Project {
	case ProjectMembers:
		return RoomUsersPayload{Room: e.Room, Users: r.index.MembersOf(e.Room)}
	case ProjectTyping:
		return TypingPayload{Username: e.Username, TypingUsers: r.index.TypingIn(e.Room)}
	case ProjectActiveUsers:
		return ActiveUsersPayload{ActiveUsers: r.index.ActiveUsers()}
	default:
		return e.Payload
	}
}

func (r *Router) ignored(connID, name, reason string) {
	metrics.EventsIgnored.WithLabelValues(name).Inc()
	r.logger.Debug("event ignored", "conn", connID, "event", name, "reason", reason)
}
