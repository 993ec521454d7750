package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/coursechat/internal/chat"
	"github.com/thereayou/coursechat/internal/handlers/dto"
	"github.com/thereayou/coursechat/internal/middleware"
	"github.com/thereayou/coursechat/internal/models"
	"github.com/thereayou/coursechat/internal/websocket"
)

// HTTPMessageHandler — REST-поверхность чата: история, поиск, непрочитанные
// и HTTP-альтернатива событиям WebSocket (рассылка идёт так же через hub)
type HTTPMessageHandler struct {
	chat *chat.Service
	hub  *websocket.Hub
}

func NewHTTPMessageHandler(service *chat.Service, hub *websocket.Hub) *HTTPMessageHandler {
	return &HTTPMessageHandler{chat: service, hub: hub}
}

func identityOf(c *gin.Context) (chat.Identity, bool) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		respondError(c, chat.ErrMissingCredential)
	}
	return id, ok
}

// GetCourseMessages получает историю сообщений курса
func (h *HTTPMessageHandler) GetCourseMessages(c *gin.Context) {
	identity, ok := identityOf(c)
	if !ok {
		return
	}
	courseID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var q dto.HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, dto.ValidationError(err))
		return
	}

	cursor, err := chat.ParseCursor(q.Before)
	if err != nil {
		respondError(c, err)
		return
	}

	messages, hasMore, err := h.chat.ListRecent(c.Request.Context(), identity, courseID, q.Limit, cursor)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.HistoryResponse{Messages: messages, HasMore: hasMore}
	if hasMore && len(messages) > 0 {
		oldest := messages[0].ID
		resp.NextBefore = &oldest
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HTTPMessageHandler) SearchMessages(c *gin.Context) {
	identity, ok := identityOf(c)
	if !ok {
		return
	}
	courseID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var q dto.SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		// Пустой q — та же ошибка, что и слишком короткий
		if strings.TrimSpace(c.Query("q")) == "" {
			respondError(c, chat.ErrSearchTermTooShort)
			return
		}
		respondError(c, dto.ValidationError(err))
		return
	}

	messages, err := h.chat.Search(c.Request.Context(), identity, courseID, q.Q, q.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SearchResponse{Messages: messages})
}

func (h *HTTPMessageHandler) GetUnreadCount(c *gin.Context) {
	identity, ok := identityOf(c)
	if !ok {
		return
	}
	courseID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	count, err := h.chat.UnreadCount(c.Request.Context(), identity, courseID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.UnreadResponse{CourseID: courseID, Unread: count})
}

// SendMessage отправляет сообщение через HTTP (альтернатива WebSocket)
func (h *HTTPMessageHandler) SendMessage(c *gin.Context) {
	identity, ok := identityOf(c)
	if !ok {
		return
	}
	courseID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, dto.ValidationError(err))
		return
	}

	view, err := h.chat.Send(c.Request.Context(), identity, chat.SendRequest{
		CourseID:       courseID,
		Content:        req.Content,
		Type:           models.MessageType(req.Type),
		ReplyTo:        req.ReplyTo,
		AttachmentURL:  req.AttachmentURL,
		AttachmentName: req.AttachmentName,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *HTTPMessageHandler) MarkRead(c *gin.Context) {
	identity, ok := identityOf(c)
	if !ok {
		return
	}
	courseID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req dto.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, dto.ValidationError(err))
		return
	}

	if err := h.chat.MarkRead(c.Request.Context(), identity, courseID, req.MessageIDs); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetPresence — кто сейчас в комнате курса и кто печатает
func (h *HTTPMessageHandler) GetPresence(c *gin.Context) {
	identity, ok := identityOf(c)
	if !ok {
		return
	}
	courseID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	if err := h.chat.Authorize(c.Request.Context(), identity, courseID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.hub.Presence(courseID))
}

// UpdateMessage обновляет сообщение
func (h *HTTPMessageHandler) UpdateMessage(c *gin.Context) {
	identity, ok := identityOf(c)
	if !ok {
		return
	}
	messageID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req dto.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, dto.ValidationError(err))
		return
	}

	view, err := h.chat.Edit(c.Request.Context(), identity, messageID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteMessage помечает сообщение удалённым
func (h *HTTPMessageHandler) DeleteMessage(c *gin.Context) {
	identity, ok := identityOf(c)
	if !ok {
		return
	}
	messageID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	view, err := h.chat.Delete(c.Request.Context(), identity, messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *HTTPMessageHandler) ReactToMessage(c *gin.Context) {
	identity, ok := identityOf(c)
	if !ok {
		return
	}
	messageID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req dto.ReactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, dto.ValidationError(err))
		return
	}

	state, err := h.chat.React(c.Request.Context(), identity, messageID, models.ReactionKind(req.Reaction))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}
