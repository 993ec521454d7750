package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/thereayou/coursechat/internal/logger"
	"github.com/thereayou/coursechat/internal/middleware"
	ws "github.com/thereayou/coursechat/internal/websocket"
)

// WebSocketHandler управляет WebSocket соединениями
type WebSocketHandler struct {
	hub            *ws.Hub
	messageHandler *MessageHandler
	upgrader       websocket.Upgrader
	log            logger.Logger
}

// NewWebSocketHandler создает новый WebSocket handler. originAllowed решает,
// с каких Origin принимать апгрейд
func NewWebSocketHandler(hub *ws.Hub, messageHandler *MessageHandler, originAllowed func(origin string) bool, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		messageHandler: messageHandler,
		log:            log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Не браузерные клиенты Origin не присылают
				if origin == "" || originAllowed == nil {
					return true
				}
				return originAllowed(origin)
			},
		},
	}
}

// HandleWebSocket обрабатывает WebSocket соединения. Аутентификация уже выполнена WSAuthMiddleware
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "missing_credential"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warnf("websocket upgrade for %s failed: %v", identity.UserID, err)
		return
	}

	client := ws.NewClient(h.hub, conn, identity)

	h.hub.Register(client)
	h.log.Infof("WebSocket connected: %s (%s, %s)", identity.UserID, identity.DisplayName, identity.Role)

	go client.WritePump()
	go client.ReadPump(h.messageHandler)
}
