// Package metrics exposes Prometheus collectors for the chat relay.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Transport metrics
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connections_active",
		Help: "The current number of open WebSocket connections.",
	})
	TotalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_connections_total",
		Help: "The total number of WebSocket connections accepted.",
	})
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_sent_total",
		Help: "The total number of outbound events queued to clients.",
	})
	MessagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_dropped_total",
		Help: "The total number of outbound events that could not be queued.",
	})

	// Router metrics
	SessionsJoined = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_sessions_joined",
		Help: "The current number of connections that completed the join handshake.",
	})
	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_events_received_total",
		Help: "The total number of inbound events handled, by event name.",
	}, []string{"event"})
	EventsIgnored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_events_ignored_total",
		Help: "The total number of inbound events ignored as early, late or malformed.",
	}, []string{"event"})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
