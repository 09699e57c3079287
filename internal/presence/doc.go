// Package presence tracks which connection belongs to which user and room.
//
// The Registry is the single owner of per-connection Session records. The
// RoomIndex is a stateless projection over it: every query rescans the current
// sessions, so room membership and typing sets can never drift from the
// registry.
package presence
