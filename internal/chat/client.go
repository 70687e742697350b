package chat

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// InboundMessage — кадр от клиента.
type InboundMessage struct {
	Message string `json:"message"`
}

// OutboundMessage — кадр, отправляемый участникам комнаты.
type OutboundMessage struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

// Client — одно websocket-подключение участника комнаты.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan OutboundMessage
	room     string
	username string
}

func newClient(hub *Hub, conn *websocket.Conn, room, username string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan OutboundMessage, 16),
		room:     room,
		username: username,
	}
}

// readPump читает кадры клиента и отдаёт непустые сообщения хабу.
func (c *Client) readPump(log *slog.Logger) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var inbound InboundMessage
		if err := c.conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("unexpected websocket close", slog.Any("error", err))
			}
			return
		}

		text := strings.TrimSpace(inbound.Message)
		if text == "" {
			continue
		}
		c.hub.broadcast <- &Message{
			Room:     c.room,
			Sender:   c,
			Username: c.username,
			Text:     text,
		}
	}
}

// writePump пишет кадры из канала send и поддерживает соединение ping-ами.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
