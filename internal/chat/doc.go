// Package chat routes inbound client events to registry mutations and
// outbound broadcasts.
//
// Each connection moves through Connected, Joined and Closed. Reduce is the
// pure transition function: given the current state, the connection's session
// and one event it returns the next state, the registry operation and the
// emissions to perform. Router applies transitions against the presence
// registry and hands emissions to a Transport.
//
// Chat messages, member lists and typing sets go to every occupant of the
// room including the sender. Only the "has joined" announcement excludes the
// connection that caused it. Events that arrive before join, after close, or
// with a malformed payload are dropped without a reply.
package chat
