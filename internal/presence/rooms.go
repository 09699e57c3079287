package presence

// RoomIndex derives room views from a Registry. It holds no state of its own;
// each query scans a fresh snapshot.
type RoomIndex struct {
	registry *Registry
}

// NewRoomIndex returns an index reading from registry.
func NewRoomIndex(registry *Registry) *RoomIndex {
	return &RoomIndex{registry: registry}
}

// MembersOf returns the usernames of every session in room, in join order.
// Two sessions sharing a username both appear. Unknown rooms yield an empty
// slice.
func (ri *RoomIndex) MembersOf(room string) []string {
	users := []string{}
	for _, s := range ri.registry.Snapshot() {
		if s.Room == room {
			users = append(users, s.Username)
		}
	}
	return users
}

// TypingIn returns the distinct usernames currently typing in room.
func (ri *RoomIndex) TypingIn(room string) []string {
	seen := make(map[string]struct{})
	users := []string{}
	for _, s := range ri.registry.Snapshot() {
		if s.Room != room || !s.Typing {
			continue
		}
		if _, dup := seen[s.Username]; dup {
			continue
		}
		seen[s.Username] = struct{}{}
		users = append(users, s.Username)
	}
	return users
}

// ConnectionsIn returns the connection ids of the sessions in room.
func (ri *RoomIndex) ConnectionsIn(room string) []string {
	ids := []string{}
	for _, s := range ri.registry.Snapshot() {
		if s.Room == room {
			ids = append(ids, s.ConnectionID)
		}
	}
	return ids
}

// ActiveUsers returns the distinct usernames across all rooms.
func (ri *RoomIndex) ActiveUsers() []string {
	seen := make(map[string]struct{})
	users := []string{}
	for _, s := range ri.registry.Snapshot() {
		if _, dup := seen[s.Username]; dup {
			continue
		}
		seen[s.Username] = struct{}{}
		users = append(users, s.Username)
	}
	return users
}
