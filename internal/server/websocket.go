package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades to WebSocket and streams events to the client.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events := s.b.Subscribe()

	// Read pump: detect client disconnect.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	// Write pump: one JSON message per event.
	for item := range events {
		msg := struct {
			Source    string   `json:"source"`
			Timestamp string   `json:"timestamp"`
			Type      string   `json:"type"`
			Message   string   `json:"message"`
			Severity  string   `json:"severity"`
			Context   []string `json:"context,omitempty"`
		}{
			Source:    item.Source,
			Timestamp: item.Event.When().Format(time.RFC3339),
			Type:      item.Event.Kind(),
			Message:   item.Event.Text(),
			Severity:  string(item.Event.Level()),
			Context:   item.Event.ContextLines(),
		}
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Warn("websocket write failed", "error", err)
			return
		}
	}
}
