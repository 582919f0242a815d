// Package realtime fans ticket events out to dashboard websocket clients.
package realtime

import (
	"context"
	"sync/atomic"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type subscription struct {
	conn     Conn
	ticketID string
}

type message struct {
	ticketID string
	data     []byte
}

// Hub owns the client set. Only Run touches the map.
type Hub struct {
	register   chan subscription
	unregister chan Conn
	broadcast  chan message
	stopped    chan struct{}
	clients    map[Conn]string
	count      atomic.Int64
	logger     *zap.Logger
}

// NewHub creates a hub; call Run to start delivering.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		register:   make(chan subscription),
		unregister: make(chan Conn),
		broadcast:  make(chan message, 64),
		stopped:    make(chan struct{}),
		clients:    make(map[Conn]string),
		logger:     logger,
	}
}

// Run delivers broadcasts until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				_ = c.Close()
				delete(h.clients, c)
			}
			h.count.Store(0)
			return
		case s := <-h.register:
			h.clients[s.conn] = s.ticketID
			h.count.Store(int64(len(h.clients)))
		case c := <-h.unregister:
			h.drop(c)
		case msg := <-h.broadcast:
			for c, filter := range h.clients {
				if filter != "" && filter != msg.ticketID {
					continue
				}
				if err := c.WriteMessage(websocket.TextMessage, msg.data); err != nil {
					h.logger.Debug("websocket write failed", zap.Error(err))
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c Conn) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.count.Store(int64(len(h.clients)))
	_ = c.Close()
}

// Register adds a client. A non-empty ticketID limits delivery to that ticket.
func (h *Hub) Register(c Conn, ticketID string) {
	select {
	case h.register <- subscription{conn: c, ticketID: ticketID}:
	case <-h.stopped:
		_ = c.Close()
	}
}

// Unregister removes and closes a client.
func (h *Hub) Unregister(c Conn) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

// Broadcast queues data for every interested client. It never blocks;
// when the queue is full the message is dropped.
func (h *Hub) Broadcast(ticketID string, data []byte) {
	select {
	case h.broadcast <- message{ticketID: ticketID, data: data}:
	default:
		h.logger.Warn("realtime queue full; dropping event", zap.String("ticket_id", ticketID))
	}
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}
