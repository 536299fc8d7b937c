package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

const maxClientMessage = 512

// orderEvents upgrades to a websocket streaming status events of one order
// until the client disconnects.
func (s *Server) orderEvents(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		s.logger.Debug("Websocket upgrade failed", slog.Any("error", err))
		return
	}

	orderID := c.Query("orderId")
	if orderID == "" {
		conn.WriteJSON(gin.H{"error": "orderId missing"})
		conn.Close()
		return
	}

	sub := s.hub.Subscribe(orderID, conn)
	defer s.hub.Unsubscribe(sub)

	// Clients only listen; the read loop exists to notice the disconnect.
	conn.SetReadLimit(maxClientMessage)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
