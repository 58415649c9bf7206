package websocket

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/maddonsteve2-blip/traderefer-sub001/models"
)

// Client represents a connected WebSocket client
type Client struct {
	Conn *websocket.Conn
}

// Hub maintains the set of connected ops dashboard clients and broadcasts
// operational alerts to all of them. It implements services.Alerter, so
// wallet and settlement code can raise alerts without knowing about the
// transport.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
			}
			client.Conn.Close()
			h.mu.Unlock()
		}
	}
}

// Alert broadcasts an operational alert to every connected client. Write
// failures are ignored here; the dead connection is reaped by its read loop.
func (h *Hub) Alert(alert models.OpsAlert) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		client.Conn.WriteJSON(alert)
	}
}

// ClientCount reports how many dashboard clients are connected
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
