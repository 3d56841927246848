package handler

import (
	"net/http"

	"roomies/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ServeWebSocket upgrades an authenticated request to a gateway connection.
// RequireIdentity has already rejected unauthenticated requests with 401, so
// no unauthenticated socket is ever opened.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	identity := identityOf(c)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		zap.L().Warn("websocket upgrade failed", zap.String("identity", identity), zap.Error(err))
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn, identity)
	zap.L().Info("websocket connected", zap.String("identity", identity), zap.String("conn_id", client.ID))
	// The hub starts the pumps once the client is registered.
	h.Hub.Register(client)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.allowedOrigins) == 0 || contains(h.allowedOrigins, "*") {
		return true
	}
	return contains(h.allowedOrigins, origin)
}
