package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, r *Registry, sessions ...Session) {
	t.Helper()
	for _, s := range sessions {
		require.NoError(t, r.Put(s))
	}
}

func TestRoomIndex_MembersOf(t *testing.T) {
	r := NewRegistry()
	idx := NewRoomIndex(r)
	seed(t, r,
		Session{ConnectionID: "a", Username: "alice", Room: "lobby"},
		Session{ConnectionID: "b", Username: "bob", Room: "lobby"},
		Session{ConnectionID: "c", Username: "carol", Room: "garden"},
		Session{ConnectionID: "d", Username: "alice", Room: "lobby"},
	)

	assert.Equal(t, []string{"alice", "bob", "alice"}, idx.MembersOf("lobby"))
	assert.Equal(t, []string{"carol"}, idx.MembersOf("garden"))

	empty := idx.MembersOf("nowhere")
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestRoomIndex_MembershipFollowsRegistry(t *testing.T) {
	r := NewRegistry()
	idx := NewRoomIndex(r)
	seed(t, r, Session{ConnectionID: "a", Username: "alice", Room: "lobby"})

	assert.Contains(t, idx.MembersOf("lobby"), "alice")

	_, _, err := r.Update("a", func(s *Session) { s.Room = "garden" })
	require.NoError(t, err)
	assert.NotContains(t, idx.MembersOf("lobby"), "alice")
	assert.Contains(t, idx.MembersOf("garden"), "alice")

	r.Remove("a")
	assert.Empty(t, idx.MembersOf("garden"))
}

func TestRoomIndex_TypingIn(t *testing.T) {
	r := NewRegistry()
	idx := NewRoomIndex(r)
	seed(t, r,
		Session{ConnectionID: "a", Username: "alice", Room: "lobby"},
		Session{ConnectionID: "b", Username: "bob", Room: "lobby", Typing: true},
		Session{ConnectionID: "c", Username: "bob", Room: "lobby", Typing: true},
		Session{ConnectionID: "d", Username: "dave", Room: "garden", Typing: true},
	)

	assert.Equal(t, []string{"bob"}, idx.TypingIn("lobby"))
	assert.Equal(t, []string{"dave"}, idx.TypingIn("garden"))
	assert.Empty(t, idx.TypingIn("nowhere"))
}

func TestRoomIndex_TypingStartStop(t *testing.T) {
	r := NewRegistry()
	idx := NewRoomIndex(r)
	seed(t, r, Session{ConnectionID: "a", Username: "alice", Room: "lobby"})

	_, _, err := r.Update("a", func(s *Session) { s.Typing = true })
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, idx.TypingIn("lobby"))

	_, _, err = r.Update("a", func(s *Session) { s.Typing = false })
	require.NoError(t, err)
	assert.Empty(t, idx.TypingIn("lobby"))
}

func TestRoomIndex_ConnectionsAndActiveUsers(t *testing.T) {
	r := NewRegistry()
	idx := NewRoomIndex(r)
	seed(t, r,
		Session{ConnectionID: "a", Username: "alice", Room: "lobby"},
		Session{ConnectionID: "b", Username: "bob", Room: "garden"},
		Session{ConnectionID: "c", Username: "alice", Room: "garden"},
	)

	assert.Equal(t, []string{"a"}, idx.ConnectionsIn("lobby"))
	assert.Equal(t, []string{"b", "c"}, idx.ConnectionsIn("garden"))
	assert.Equal(t, []string{"alice", "bob"}, idx.ActiveUsers())
}
