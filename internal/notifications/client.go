package notifications

import (
	"time"

	"inkwell/internal/middleware"
	"inkwell/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Subscribers only listen; anything larger than a control frame is abuse.
	maxMessageSize = 512

	sendBufferSize = 64
)

// Client is one subscriber socket. The hub writes into Send; WritePump drains it.
type Client struct {
	hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	ArticleID uint
}

func newClient(hub *Hub, conn *websocket.Conn, articleID uint) *Client {
	return &Client{
		hub:       hub,
		Conn:      conn,
		ArticleID: articleID,
		Send:      make(chan []byte, sendBufferSize),
	}
}

// ReadPump discards inbound frames and unregisters the client once the peer goes away.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { _ = c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.Logger.Debug("comment stream read error", "article_id", c.ArticleID, "error", err)
			}
			return
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues message without blocking. A full buffer drops the message.
func (c *Client) TrySend(message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues(hubName, "closed").Inc()
		}
	}()

	select {
	case c.Send <- message:
		return true
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues(hubName, "full").Inc()
		return false
	}
}
