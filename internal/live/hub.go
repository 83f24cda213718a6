// Package live pushes catalog events to websocket subscribers.
package live

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 2 * time.Second
	// sendBuffer is how many events a client may fall behind before it is
	// dropped.
	sendBuffer = 16
)

var ErrHubClosed = errors.New("live: hub closed")

// client owns the only goroutine that writes data frames to ws.
type client struct {
	ws   *websocket.Conn
	send chan []byte
}

type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]*client
	closed  bool
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*websocket.Conn]*client),
		logger:  logger,
	}
}

// Add registers ws and queues hello ahead of any broadcast, so a client that
// has read hello will see every later event.
func (h *Hub) Add(ws *websocket.Conn, hello []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}

	c := &client{ws: ws, send: make(chan []byte, sendBuffer)}
	if hello != nil {
		c.send <- hello
	}
	h.clients[ws] = c

	go h.writeLoop(c)
	return nil
}

func (h *Hub) writeLoop(c *client) {
	defer c.ws.Close()

	for msg := range c.send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug("live: write failed", "error", err)
			return
		}
	}

	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(writeWait))
}

// detach must be called with h.mu held.
func (h *Hub) detach(ws *websocket.Conn) {
	if c, ok := h.clients[ws]; ok {
		delete(h.clients, ws)
		close(c.send)
	}
}

func (h *Hub) Remove(ws *websocket.Conn) {
	h.mu.Lock()
	h.detach(ws)
	h.mu.Unlock()
	_ = ws.Close()
}

// BroadcastJSON queues v for every client without waiting on the network.
// A client whose queue is full is dropped.
func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("live: encode event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for ws, c := range h.clients {
		select {
		case c.send <- b:
		default:
			h.logger.Debug("live: dropping slow client")
			h.detach(ws)
			_ = ws.Close()
		}
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close stops accepting clients and tells each writer to flush its queue and
// send a close frame.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ws := range h.clients {
		h.detach(ws)
	}
}
