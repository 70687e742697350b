package chat

import (
	"context"
	"log/slog"
)

// Message — сообщение, рассылаемое участникам комнаты.
type Message struct {
	Room     string
	Sender   *Client
	Username string
	Text     string
}

// Hub держит комнаты чата и раздаёт сообщения их участникам.
// Вся работа с картой комнат идёт в одной горутине Run,
// поэтому дополнительной синхронизации не требуется.
type Hub struct {
	log        *slog.Logger
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:        log,
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message),
	}
}

// Run обслуживает комнаты до отмены контекста.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.log.Info("chat hub stopped")
			return
		case client := <-h.register:
			clients, ok := h.rooms[client.room]
			if !ok {
				clients = make(map[*Client]bool)
				h.rooms[client.room] = clients
			}
			clients[client] = true
			h.log.Info("client joined room",
				slog.String("room", client.room),
				slog.String("username", client.username),
			)
		case client := <-h.unregister:
			if clients, ok := h.rooms[client.room]; ok {
				if clients[client] {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.room)
					}
				}
			}
		case msg := <-h.broadcast:
			// эхо всем участникам комнаты, кроме отправителя
			for client := range h.rooms[msg.Room] {
				if client == msg.Sender {
					continue
				}
				select {
				case client.send <- OutboundMessage{Message: msg.Text, Username: msg.Username}:
				default:
					// клиент не успевает читать — отключаем
					delete(h.rooms[msg.Room], client)
					close(client.send)
				}
			}
		}
	}
}
