package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/gorilla/websocket"
)

// Progress is the message broadcast for every completed PSA iteration.
type Progress struct {
	Type      string           `json:"type"`
	Model     string           `json:"model"`
	Iteration int              `json:"iteration"`
	Branches  []runtime.Branch `json:"branches"`
}

// Change is broadcast after a model is replaced, undone or redone.
type Change struct {
	Type  string            `json:"type"`
	Label string            `json:"label,omitempty"`
	Diff  *domain.ModelDiff `json:"diff"`
}

// Hub fans progress messages out to websocket clients.
type Hub struct {
	register   chan *client
	unregister chan *client
	clients    map[*client]bool
	broadcast  chan []byte
	done       chan struct{}
	count      atomic.Int64
	logger     *slog.Logger
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. Call Run to start delivering messages.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run delivers messages until ctx is done, then disconnects every client.
// It must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for c := range h.clients {
			delete(h.clients, c)
			close(c.send)
		}
		h.count.Store(0)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = true
			h.count.Add(1)
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.count.Add(-1)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow client
					delete(h.clients, c)
					close(c.send)
					h.count.Add(-1)
				}
			}
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int { return int(h.count.Load()) }

// BroadcastJSON queues v for every client. It drops the message when the
// queue is full rather than stall the caller.
func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.logger.Warn("ws: failed to marshal message", "err", err)
		return
	}
	select {
	case h.broadcast <- b:
	default:
		h.logger.Warn("ws: broadcast queue full, dropping message")
	}
}

// Record implements runtime.IterationSink by broadcasting progress.
func (h *Hub) Record(ctx context.Context, model string, it runtime.IterationResult) error {
	h.BroadcastJSON(Progress{Type: "iteration", Model: model, Iteration: it.Index, Branches: it.Branches})
	return nil
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// ServeWS upgrades the request and registers the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, 256)}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *client) writePump() {
	defer func() {
		_ = c.conn.Close()
	}()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump discards client messages and unregisters on disconnect.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
