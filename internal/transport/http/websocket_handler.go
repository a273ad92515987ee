package http

import (
	"log/slog"
	"net/http"

	gorilla "github.com/gorilla/websocket"

	"qtodash/internal/infrastructure"
	"qtodash/internal/middleware"
	"qtodash/internal/websocket"
)

// WebSocketHandler upgrades /ws and attaches the connection to the caller's
// upload session
type WebSocketHandler struct {
	hub      *websocket.Hub
	upgrader *gorilla.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates the upgrade handler
func NewWebSocketHandler(hub *websocket.Hub, upgrader *gorilla.Upgrader, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		upgrader: upgrader,
		logger:   logger.With(slog.String("handler", "websocket")),
	}
}

// ServeHTTP handles GET /ws
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// the upgrader has already written an HTTP error on failure
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(ctx, "WebSocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("origin", r.Header.Get("Origin")))
		return
	}

	websocket.Serve(h.hub, websocket.WrapConn(conn), middleware.SessionID(ctx), infrastructure.GetTraceID(ctx), h.logger)
}
