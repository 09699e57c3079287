// Package server implements the WebSocket transport of the chat relay.
//
// The Hub owns every open connection, feeds inbound frames to an
// EventHandler and implements targeted delivery to one connection, a room or
// everybody. Server exposes the socket endpoint alongside health, status,
// metrics and test page routes. The implementation is organized into files
// for hub management, clients, routing, origin checks and HTTP handlers.
package server
