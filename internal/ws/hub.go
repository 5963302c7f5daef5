package ws

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// clientDropLimit is how many consecutive dropped messages a slow client
// survives before the hub evicts it.
const clientDropLimit = 8

// Client is one connected WebSocket consumer of controller events.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	dropped int // consecutive drops, guarded by hub.mu
}

// Hub fans controller events out to connected clients. The most recent
// regulation envelope is retained and replayed to clients that connect
// between control cycles, so a dashboard never starts blank and never waits
// a full interval for its first trajectory.
type Hub struct {
	mu             sync.Mutex
	clients        map[*Client]bool
	lastRegulation []byte
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
	}
}

// Register adds a client and replays the retained regulation result, if any.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	if h.lastRegulation != nil {
		select {
		case c.send <- h.lastRegulation:
		default:
		}
	}
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast sends a message to all connected clients. A slow client is
// skipped rather than blocking the controller loop, and evicted once it has
// dropped clientDropLimit messages in a row.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
			c.dropped = 0
		default:
			c.dropped++
			if c.dropped >= clientDropLimit {
				log.Printf("client not draining, evicting after %d drops", c.dropped)
				delete(h.clients, c)
				close(c.send)
				continue
			}
			log.Printf("client buffer full, dropping message")
		}
	}
}

// BroadcastRegulation sends a regulation envelope to all clients and retains
// it for replay to late joiners.
func (h *Hub) BroadcastRegulation(msg []byte) {
	h.mu.Lock()
	h.lastRegulation = msg
	h.mu.Unlock()
	h.Broadcast(msg)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
