// Package server coordinates client registration, targeted delivery and
// connection cleanup for the chat relay via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/wsehl/chatrooms/internal/metrics"
)

// Hub owns every open WebSocket client and implements the outbound side of
// the transport: emit to one connection, to a room, or to everybody. Room
// membership is resolved through a RoomResolver at send time. All sends are
// non-blocking; a client whose buffer is full is disconnected.
type Hub struct {
	clients        map[string]*Client
	register       chan *Client
	unregister     chan *Client
	mutex          sync.RWMutex
	wg             sync.WaitGroup
	ctx            context.Context
	cancel         context.CancelFunc
	done           chan struct{}
	handler        EventHandler
	rooms          RoomResolver
	logger         *slog.Logger
	maxMessageSize int64
}

// NewHub creates and initializes a new Hub. Bind must be called before Run.
// A nil logger falls back to slog.Default().
func NewHub(maxMessageSize int64, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:        make(map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
		logger:         logger,
		maxMessageSize: maxMessageSize,
	}
}

// Bind attaches the inbound event handler and the room resolver.
func (h *Hub) Bind(handler EventHandler, rooms RoomResolver) {
	h.handler = handler
	h.rooms = rooms
}

// Register hands a new client to the hub. It reports false once the hub has
// shut down.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// ClientCount reports the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Run starts the hub's main loop, handling client registration and
// unregistration until Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.logger.Warn("received nil client registration; skipping")
				continue
			}
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()

	metrics.ActiveConnections.Inc()
	metrics.TotalConnections.Inc()
	h.logger.Info("client registered", "conn", client.id, "addr", client.addr, "clients", clientCount)

	// The handler must know the connection before its first event can arrive.
	if h.handler != nil {
		h.handler.OnConnect(client.id)
	}

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// removeClient is idempotent: only the first call for a client closes its
// send channel and reports the disconnect.
func (h *Hub) removeClient(client *Client) {
	if client == nil {
		return
	}

	h.mutex.Lock()
	if current, ok := h.clients[client.id]; !ok || current != client {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client.id)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	// Close the channel after releasing the lock
	close(client.send)
	metrics.ActiveConnections.Dec()
	h.logger.Info("client unregistered", "conn", client.id, "addr", client.addr, "clients", clientCount)

	if h.handler != nil {
		h.handler.OnDisconnect(client.id)
	}
}

// unregisterClient hands the client to Run, or removes it directly once Run
// has stopped so pumps never block during shutdown.
func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		h.removeClient(client)
	}
}

func (h *Hub) dispatch(connID string, env Envelope) {
	if h.handler == nil {
		return
	}
	h.handler.OnEvent(connID, env.Event, env.Data)
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("recovered from panic in safeSend", "panic", r)
		}
	}()

	// Hold the lock during the entire send operation to prevent race conditions
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if current, exists := h.clients[client.id]; !exists || current != client || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

func (h *Hub) encode(event string, payload any) ([]byte, bool) {
	data, err := json.Marshal(outboundEnvelope{Event: event, Data: payload})
	if err != nil {
		h.logger.Error("error encoding outbound event", "event", event, "error", err)
		return nil, false
	}
	return data, true
}

// deliver queues message for each target. Failures are logged and counted;
// a client whose buffer is full is disconnected.
func (h *Hub) deliver(targets []*Client, message []byte) {
	for _, client := range targets {
		if h.safeSend(client, message) {
			metrics.MessagesSent.Inc()
			continue
		}
		metrics.MessagesDropped.Inc()
		h.logger.Warn("dropping slow or closed client", "conn", client.id, "addr", client.addr)
		client.kick()
	}
}

func (h *Hub) lookup(ids []string, exclude string) []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(ids))
	for _, id := range ids {
		if id == exclude {
			continue
		}
		if client, ok := h.clients[id]; ok {
			clients = append(clients, client)
		}
	}
	return clients
}

// getClientSnapshot returns a thread-safe snapshot of all current clients
func (h *Hub) getClientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// EmitToOne sends event to a single connection.
func (h *Hub) EmitToOne(connID, event string, payload any) {
	data, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.deliver(h.lookup([]string{connID}, ""), data)
}

// EmitToRoom sends event to every connection in room except exclude.
func (h *Hub) EmitToRoom(room, event string, payload any, exclude string) {
	if h.rooms == nil {
		return
	}
	data, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.deliver(h.lookup(h.rooms.ConnectionsIn(room), exclude), data)
}

// EmitToAll sends event to every open connection, joined or not.
func (h *Hub) EmitToAll(event string, payload any) {
	data, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.deliver(h.getClientSnapshot(), data)
}

// Close disconnects a connection. Its disconnect is reported to the handler
// once the read pump notices.
func (h *Hub) Close(connID string) {
	for _, client := range h.lookup([]string{connID}, "") {
		client.kick()
	}
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	h.logger.Info("shutting down all client connections")

	clients := h.getClientSnapshot()
	for _, client := range clients {
		client.kick()
	}

	h.logger.Info("closed client connections", "count", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
