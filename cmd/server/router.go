package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/coursechat/internal/handlers"
)

type Handlers struct {
	Auth      *handlers.AuthHandler
	Messages  *handlers.HTTPMessageHandler
	WebSocket *handlers.WebSocketHandler
}

func APIEndpoints(r *gin.Engine, h Handlers, authMW, wsAuthMW gin.HandlerFunc) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// WebSocket: токен проверяется до апгрейда
	r.GET("/ws", wsAuthMW, h.WebSocket.HandleWebSocket)

	// API endpoints
	api := r.Group("/api/v1", authMW)
	{
		api.POST("/auth/logout", h.Auth.Logout)

		courses := api.Group("/courses/:id")
		{
			courses.GET("/messages", h.Messages.GetCourseMessages)
			courses.POST("/messages", h.Messages.SendMessage)
			courses.GET("/messages/search", h.Messages.SearchMessages)
			courses.GET("/messages/unread", h.Messages.GetUnreadCount)
			courses.POST("/messages/read", h.Messages.MarkRead)
			courses.GET("/presence", h.Messages.GetPresence)
		}

		messages := api.Group("/messages/:id")
		{
			messages.PUT("", h.Messages.UpdateMessage)
			messages.DELETE("", h.Messages.DeleteMessage)
			messages.POST("/reactions", h.Messages.ReactToMessage)
		}
	}
}
