package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"clinic-session-backend/internal/mw"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Subscribe handles GET /api/ws: upgrades the connection and joins the
// caller's tenant channel for appointment-timer-update events.
func (h *Handler) Subscribe(c *gin.Context) {
	systemID := c.GetString(mw.CtxSystemID)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	if err := h.hub.Register(systemID, conn); err != nil {
		return
	}

	// Clients only listen; the read loop exists to detect disconnects.
	go func() {
		defer h.hub.Unregister(systemID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
