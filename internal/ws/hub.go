package ws

import (
	"sync"

	"github.com/gorilla/websocket"

	"pvivy/internal/log"
)

// sendBuffer is the number of outbound messages queued per connection. A
// full training run emits about a hundred train:progress events.
const sendBuffer = 256

// Client is one WebSocket connection. Replies to its iv:simulate, iv:detect
// and train:start requests and every training event are queued on send and
// written by writePump.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks open connections. Training events fan out to all of them
// through Broadcast; request replies go to the requester through Send.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// Unregister removes c and closes its queue, which stops writePump. Calling
// it twice is safe.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast queues a training event for every connection and returns how
// many accepted it. A client whose queue is full misses the event; the
// final train:done is sent the same way, so slow clients may miss it too.
func (h *Hub) Broadcast(msg []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for c := range h.clients {
		select {
		case c.send <- msg:
			delivered++
		default:
			log.Warnw("client queue full, dropping training event", "queued", len(c.send))
		}
	}
	return delivered
}

// Send queues a reply for the client that made the request. It reports
// false if the client has disconnected or its queue is full.
func (h *Hub) Send(c *Client, msg []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		log.Warnw("client queue full, dropping reply", "queued", len(c.send))
		return false
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Debugw("websocket write failed", "error", err)
			return
		}
	}
}
