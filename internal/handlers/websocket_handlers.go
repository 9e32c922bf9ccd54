package handlers

import (
	"net/http"

	"meet-signal/internal/config"
	ws "meet-signal/internal/websocket"
	"meet-signal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

type WebSocketHandlers struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

func NewWebSocketHandlers(hub *ws.Hub, cfg config.ServerConfig) *WebSocketHandlers {
	return &WebSocketHandlers{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg),
		},
	}
}

// originChecker allows requests without an Origin header (non-browser
// clients) and browser requests from ALLOWED_ORIGINS.
func originChecker(cfg config.ServerConfig) func(r *http.Request) bool {
	if cfg.AllowsAnyOrigin() {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || lo.Contains(cfg.AllowedOrigins, origin)
	}
}

func (h *WebSocketHandlers) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Upgrade error from %s: %v", c.ClientIP(), err)
		return
	}

	client := ws.NewClient(h.hub, conn)
	if !h.hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}
	logger.Debug("Connection %s opened from %s", client.ID, c.ClientIP())

	go client.WritePump()
	go client.ReadPump()
}
