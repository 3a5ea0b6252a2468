package websocket

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

const maxMessageSize = 512

// Handler upgrades requests and keeps each connection registered until the
// client goes away. Clients only listen; inbound frames are discarded.
type Handler struct {
	hub       *Hub
	upgrader  websocket.Upgrader
	onConnect func(ctx context.Context) error
}

// NewHandler returns a handler for hub. onConnect runs after each successful
// registration, typically to replay the current state to the new client.
func NewHandler(hub *Hub, checkOrigin func(*http.Request) bool, onConnect func(ctx context.Context) error) *Handler {
	return &Handler{
		hub:       hub,
		upgrader:  websocket.Upgrader{CheckOrigin: checkOrigin},
		onConnect: onConnect,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("WebSocket upgrade failed", "error", err)
		return
	}

	if err := h.hub.Register(conn); err != nil {
		slog.Warn("WebSocket registration failed", "error", err)
		return
	}
	defer h.hub.Unregister(conn)

	if h.onConnect != nil {
		if err := h.onConnect(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "Failed to replay state to websocket client", "error", err)
		}
	}

	conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
