package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ageniuscoder/shopdesk/backend/internal/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 5120
	frameTimeout   = 5 * time.Second
)

// Inbound handles the frames a connected client may send.
type Inbound interface {
	Heartbeat(ctx context.Context, id auth.Identity) error
	SetTyping(ctx context.Context, id auth.Identity, userID int64, isTyping bool) error
}

type Client struct {
	ID       string
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	Identity auth.Identity
	Inbound  Inbound
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}
		var frame inboundFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			continue
		}
		c.handle(frame)
	}
}

// handle applies one inbound frame. Closing the socket never marks the client offline.
func (c *Client) handle(frame inboundFrame) {
	if c.Inbound == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), frameTimeout)
	defer cancel()

	var err error
	switch frame.Type {
	case "ping":
		if !c.Identity.IsAdmin {
			err = c.Inbound.Heartbeat(ctx, c.Identity)
		}
	case "typing":
		err = c.Inbound.SetTyping(ctx, c.Identity, frame.UserID, frame.IsTyping)
	}
	if err != nil {
		c.Hub.log.Warn("[ws] frame failed", "conn_id", c.ID, "type", frame.Type, "error", err)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
