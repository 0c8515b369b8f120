package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"adstudio-server/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin is enforced by the CORS layer in front of this handler.
		return true
	},
}

// ServeWS upgrades the connection and registers it for job update fan-out.
// Auth ran in the middleware; the token travels in the query string since
// browsers cannot set headers on websocket upgrades.
func (h *Handler) ServeWS(c *gin.Context) {
	sessionID := sessionIDFromContext(c)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed",
			zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	h.wsManager.Register(ws.NewClient(sessionID, conn))
}
