package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// WebSocketHandler streams a player's events over a websocket. The player is
// taken from the {id} path value.
type WebSocketHandler struct {
	hub            *Hub
	originPatterns []string
}

// NewWebSocketHandler creates a handler; originPatterns follow
// websocket.AcceptOptions and default to same-origin when empty.
func NewWebSocketHandler(hub *Hub, originPatterns []string) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, originPatterns: originPatterns}
}

// ServeHTTP implements http.Handler for WebSocket upgrade
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	playerID := r.PathValue("id")
	if playerID == "" {
		http.Error(w, "player id required", http.StatusBadRequest)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("failed to accept websocket", "error", err, "player_id", playerID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed closed"); closeErr != nil {
			slog.Debug("failed to close websocket", "error", closeErr, "player_id", playerID)
		}
	}()

	sub := h.hub.Subscribe(playerID)
	defer sub.Close()

	// Watchers only listen; CloseRead cancels ctx when the client goes away
	ctx := ws.CloseRead(r.Context())
	slog.Info("event watcher connected", "player_id", playerID)

	for {
		select {
		case <-ctx.Done():
			slog.Info("event watcher disconnected", "player_id", playerID)
			return
		case frame, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeFrame(ctx, ws, frame); err != nil {
				slog.Debug("websocket write error", "error", err, "player_id", playerID)
				return
			}
		}
	}
}

func writeFrame(ctx context.Context, ws *websocket.Conn, frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
