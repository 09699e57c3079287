// Package server wires HTTP handlers into a ServeMux for the chat relay via
// routing helpers.
package server

import (
	"net/http"

	"github.com/wsehl/chatrooms/internal/config"
	"github.com/wsehl/chatrooms/internal/metrics"
)

// Routes configures and returns an HTTP ServeMux with all application routes.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.HealthHandler)
	mux.HandleFunc(config.SocketPath, s.WebSocketHandler)
	mux.HandleFunc("/healthz", s.StatusHandler)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/test", s.TestPageHandler)
	return mux
}
