package presence

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrDuplicateConnection is returned by Put when the connection already
	// has a session and has not been removed since.
	ErrDuplicateConnection = errors.New("presence: duplicate connection")

	// ErrStaleSession marks an operation that targeted a session which has
	// already been removed. Callers absorb it; it never reaches a client.
	ErrStaleSession = errors.New("presence: stale session reference")
)

// Session is the per-connection record created on join.
type Session struct {
	ConnectionID string
	Username     string
	Room         string
	Typing       bool
}

type entry struct {
	session Session
	seq     uint64
}

// Registry maps connection identifiers to sessions. All methods are safe for
// concurrent use and each call is atomic with respect to the others.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	nextSeq  uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
	}
}

// Put registers a session under its connection id. It fails with
// ErrDuplicateConnection if the id is still present.
func (r *Registry) Put(s Session) error {
	if s.ConnectionID == "" {
		return errors.New("presence: empty connection id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ConnectionID]; exists {
		return fmt.Errorf("put %s: %w", s.ConnectionID, ErrDuplicateConnection)
	}

	r.nextSeq++
	r.sessions[s.ConnectionID] = &entry{session: s, seq: r.nextSeq}
	return nil
}

// Get returns a copy of the session for id. The boolean is false for
// connections that have not joined yet or were already removed.
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return e.session, true
}

// Update applies mutate to the session for id and returns the session as it
// was before and after the change. It is a no-op returning ErrStaleSession
// when the session is absent. The connection id and username are restored
// after mutate runs, so only room and typing can change.
func (r *Registry) Update(id string, mutate func(*Session)) (before, after Session, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return Session{}, Session{}, fmt.Errorf("update %s: %w", id, ErrStaleSession)
	}

	before = e.session
	next := e.session
	mutate(&next)
	next.ConnectionID = before.ConnectionID
	next.Username = before.Username
	e.session = next

	return before, next, nil
}

// Remove deletes the session for id and returns it so the caller can announce
// the departure. A second call for the same id reports false.
func (r *Registry) Remove(id string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	delete(r.sessions, id)
	return e.session, true
}

// Len reports the number of joined sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns a copy of every session ordered by registration.
func (r *Registry) Snapshot() []Session {
	r.mu.RLock()
	entries := make([]entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		entries = append(entries, *e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})

	sessions := make([]Session, len(entries))
	for i, e := range entries {
		sessions[i] = e.session
	}
	return sessions
}
