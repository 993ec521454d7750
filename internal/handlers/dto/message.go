package dto

import (
	"github.com/google/uuid"
	"github.com/thereayou/coursechat/internal/chat"
)

// SendMessageRequest — тело POST /courses/:id/messages и data события send-message
type SendMessageRequest struct {
	Content        string     `json:"content" binding:"required"`
	Type           string     `json:"type,omitempty" binding:"omitempty,message_type"`
	ReplyTo        *uuid.UUID `json:"reply_to,omitempty"`
	AttachmentURL  string     `json:"attachment_url,omitempty" binding:"omitempty,url"`
	AttachmentName string     `json:"attachment_name,omitempty" binding:"omitempty,max=255"`
}

type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type ReactRequest struct {
	Reaction string `json:"reaction" binding:"required,reaction"`
}

type MarkReadRequest struct {
	MessageIDs []uuid.UUID `json:"message_ids" binding:"required,min=1,max=500"`
}

// HistoryQuery — параметры GET /courses/:id/messages
type HistoryQuery struct {
	Limit  int    `form:"limit" binding:"omitempty,min=0"`
	Before string `form:"before"`
}

type SearchQuery struct {
	Q     string `form:"q" binding:"required"`
	Limit int    `form:"limit" binding:"omitempty,min=0"`
}

// Полезная нагрузка событий WebSocket, которые ссылаются на сообщение

type MessageRef struct {
	MessageID uuid.UUID `json:"message_id" binding:"required"`
}

type EditMessagePayload struct {
	MessageID uuid.UUID `json:"message_id" binding:"required"`
	Content   string    `json:"content" binding:"required"`
}

type ReactPayload struct {
	MessageID uuid.UUID `json:"message_id" binding:"required"`
	Reaction  string    `json:"reaction" binding:"required,reaction"`
}

type HistoryResponse struct {
	Messages []chat.MessageView `json:"messages"`
	HasMore  bool               `json:"has_more"`
	// NextBefore — курсор для следующей (более старой) страницы
	NextBefore *uuid.UUID `json:"next_before,omitempty"`
}

type SearchResponse struct {
	Messages []chat.MessageView `json:"messages"`
}

type UnreadResponse struct {
	CourseID uuid.UUID `json:"course_id"`
	Unread   int64     `json:"unread"`
}
