package chat

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/linemk/coffee-shop/internal/storage"
	"github.com/linemk/coffee-shop/internal/token"
)

// CloseCodeUnauthorized возвращается клиенту при отсутствующем или
// невалидном токене в заголовке Authorization.
const CloseCodeUnauthorized = 4001

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// tokenFromHeader извлекает bearer-токен из заголовка Authorization.
func tokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// ServeWS обрабатывает подключение к ws://.../chat/{room_name}/.
// Токен проверяется после upgrade, чтобы клиент получил
// отличимый код закрытия вместо обычного HTTP-отказа.
func ServeWS(log *slog.Logger, hub *Hub, tokens *token.Manager, userRepo storage.UserStorage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "chat.ServeWS"
		logger := log.With(slog.String("op", op))

		room := chi.URLParam(r, "room_name")
		if room == "" {
			http.Error(w, "room name is required", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("websocket upgrade failed", slog.Any("error", err))
			return
		}

		username, ok := authenticate(r, tokens, userRepo)
		if !ok {
			closeMsg := websocket.FormatCloseMessage(CloseCodeUnauthorized, "unauthorized")
			_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
			conn.Close()
			logger.Warn("websocket connection rejected", slog.String("room", room))
			return
		}

		client := newClient(hub, conn, room, username)
		hub.register <- client

		go client.writePump()
		go client.readPump(logger)
	}
}

func authenticate(r *http.Request, tokens *token.Manager, userRepo storage.UserStorage) (string, bool) {
	raw := tokenFromHeader(r)
	if raw == "" {
		return "", false
	}
	claims, err := tokens.Parse(raw, token.TypeAccess)
	if err != nil {
		return "", false
	}
	user, err := userRepo.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		return "", false
	}
	return user.Username, true
}
