package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ageniuscoder/shopdesk/backend/internal/apperr"
	"github.com/ageniuscoder/shopdesk/backend/internal/auth"
	"github.com/ageniuscoder/shopdesk/backend/internal/httpx"
)

func newUpgrader(allowOrigin func(origin string) bool) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowOrigin == nil || allowOrigin(origin)
		},
	}
}

// RegisterWS mounts GET /ws for authenticated clients.
// Auth works via:
// 1) Header: Authorization: Bearer <JWT>
// 2) Query:  ?token=<JWT>
func RegisterWS(rg *gin.RouterGroup, hub *Hub, in Inbound, jwtSecret string, allowOrigin func(string) bool) {
	upgrader := newUpgrader(allowOrigin)
	rg.GET("/ws", func(c *gin.Context) {
		token := auth.BearerToken(c)
		if token == "" {
			httpx.Fail(c, apperr.New(apperr.Unauthorized, "missing token"))
			return
		}
		cl, err := auth.ParseToken(jwtSecret, token)
		if err != nil {
			httpx.Fail(c, apperr.New(apperr.Unauthorized, "invalid token"))
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		client := &Client{
			ID:       uuid.NewString(),
			Hub:      hub,
			Conn:     conn,
			Send:     make(chan []byte, 256),
			Identity: cl.Identity(),
			Inbound:  in,
		}
		if !hub.Register(client) {
			conn.Close()
			return
		}
		if !client.Identity.IsAdmin && in != nil {
			_ = in.Heartbeat(c.Request.Context(), client.Identity)
		}

		go client.writePump()
		go client.readPump()
	})
}
