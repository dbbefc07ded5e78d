package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"parkingspace/internal/realtime"
)

type WebSocketHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	logger   *logrus.Logger
}

// NewWebSocketHandler accepts upgrades from allowedOrigins, or from any origin when the list is empty or contains "*".
func NewWebSocketHandler(hub *realtime.Hub, allowedOrigins []string, logger *logrus.Logger) *WebSocketHandler {
	allowAll := len(allowedOrigins) == 0
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		origins[o] = true
	}
	return &WebSocketHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || origins[origin]
			},
		},
	}
}

// GET /ws?token=
func (h *WebSocketHandler) Handle(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	h.logger.WithField("user_id", actor.UserID).Debug("WebSocket client connected")
	h.hub.Serve(realtime.NewClient(actor.UserID, conn))
}
