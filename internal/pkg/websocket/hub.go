package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
	"github.com/yigit/slotbook/internal/app/models"
)

// Hub maintains the set of connected dashboard clients and fans out slot
// occupancy changes to them.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound slot updates
	broadcast chan *Message

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	// Mutex for concurrent access to clients map
	mu sync.RWMutex

	// Logger for Hub operations
	logger zerolog.Logger
}

// NewHub creates a new Hub instance
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan *Message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		logger:     logger,
	}
}

// Run handles client registrations and broadcasts until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// registerClient registers a new client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	h.logger.Info().
		Str("admin", client.username).
		Str("addr", client.remoteAddr()).
		Msg("Dashboard client registered")
}

// unregisterClient unregisters a client from the hub
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(client)
}

// removeLocked drops a client; the caller holds h.mu for writing
func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	h.logger.Info().
		Str("admin", client.username).
		Str("addr", client.remoteAddr()).
		Msg("Dashboard client unregistered")
}

// broadcastMessage sends a message to every client. Clients whose buffer is
// full are dropped; their write pump then closes the connection.
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal message for broadcast")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.logger.Warn().Str("admin", client.username).Msg("Dropping slow dashboard client")
			h.removeLocked(client)
		}
	}

	h.logger.Debug().
		Str("type", message.Type).
		Int("slotCount", len(message.Slots)).
		Int("clientCount", len(h.clients)).
		Msg("Slot update broadcasted")
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		h.removeLocked(client)
	}
}

// PublishSlots queues the new state of changed slots for broadcast. Updates
// are delivered in the order they are published; the call waits for queue
// space and returns at once when the hub has stopped.
func (h *Hub) PublishSlots(slots []*models.Slot) {
	if len(slots) == 0 {
		return
	}

	select {
	case <-h.done:
	case h.broadcast <- NewMessage(MessageTypeSlotsUpdated, slots):
	}
}

// ClientsCount returns the number of connected clients
func (h *Hub) ClientsCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
