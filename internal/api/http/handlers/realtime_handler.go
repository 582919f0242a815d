package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/spec-kit/dig-ticket-service/internal/realtime"
)

// RealtimeHandler upgrades dashboard connections onto the event hub.
type RealtimeHandler struct {
	hub *realtime.Hub
}

// NewRealtimeHandler constructs handler.
func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// Upgrade rejects plain HTTP requests to the feed.
func (h *RealtimeHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals("ticket_id", c.Query("ticket_id"))
	return c.Next()
}

// Stream GET /ws/tickets. An optional ticket_id query parameter limits the
// feed to one ticket. Inbound frames are read only to notice disconnects.
func (h *RealtimeHandler) Stream() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ticketID, _ := conn.Locals("ticket_id").(string)
		h.hub.Register(conn, ticketID)
		defer h.hub.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}
