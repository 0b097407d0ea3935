package sync

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func WSHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		// welcome goes out before the hub can broadcast to this conn
		_ = ws.WriteMessage(websocket.TextMessage, hub.welcome())

		hub.AddWS(ws)
		hub.logger.Debug("ws client connected", zap.String("remote", c.ClientIP()))

		// subscribers only listen; read until the peer goes away
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.RemoveWS(ws)
		hub.logger.Debug("ws client disconnected", zap.String("remote", c.ClientIP()))
	}
}
