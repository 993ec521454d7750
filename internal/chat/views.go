package chat

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/coursechat/internal/models"
)

// DeletedPlaceholder заменяет текст удалённого сообщения
const DeletedPlaceholder = "This message was deleted"

type SenderView struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Role      models.Role `json:"role"`
	AvatarURL string      `json:"avatar_url,omitempty"`
}

type ReplyView struct {
	ID        uuid.UUID   `json:"id"`
	SenderID  uuid.UUID   `json:"sender_id"`
	Sender    *SenderView `json:"sender,omitempty"`
	Content   string      `json:"content"`
	IsDeleted bool        `json:"is_deleted"`
}

type AttachmentView struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// MessageView — сообщение в том виде, в каком его получают клиенты (WS и HTTP)
type MessageView struct {
	ID             uuid.UUID                   `json:"id"`
	CourseID       uuid.UUID                   `json:"course_id"`
	SenderID       uuid.UUID                   `json:"sender_id"`
	Sender         *SenderView                 `json:"sender,omitempty"`
	Content        string                      `json:"content"`
	Type           models.MessageType          `json:"type"`
	IsAnnouncement bool                        `json:"is_announcement"`
	ReplyTo        *ReplyView                  `json:"reply_to,omitempty"`
	Attachment     *AttachmentView             `json:"attachment,omitempty"`
	Reactions      []ReactionView              `json:"reactions"`
	ReactionCounts map[models.ReactionKind]int `json:"reaction_counts"`
	IsEdited       bool                        `json:"is_edited"`
	EditedAt       *time.Time                  `json:"edited_at,omitempty"`
	IsDeleted      bool                        `json:"is_deleted"`
	DeletedAt      *time.Time                  `json:"deleted_at,omitempty"`
	CreatedAt      time.Time                   `json:"created_at"`
}

func NewMessageView(m *models.Message) MessageView {
	reactions, counts := aggregateReactions(m.Reactions)
	view := MessageView{
		ID:             m.ID,
		CourseID:       m.CourseID,
		SenderID:       m.SenderID,
		Sender:         senderView(&m.Sender),
		Content:        m.Content,
		Type:           m.Type,
		IsAnnouncement: m.Type == models.MessageAnnouncement,
		Reactions:      reactions,
		ReactionCounts: counts,
		IsEdited:       m.IsEdited,
		EditedAt:       m.EditedAt,
		IsDeleted:      m.IsDeleted,
		DeletedAt:      m.DeletedAt,
		CreatedAt:      m.CreatedAt,
	}

	if m.AttachmentURL != "" && !m.IsDeleted {
		view.Attachment = &AttachmentView{URL: m.AttachmentURL, Name: m.AttachmentName}
	}

	if m.ReplyTo != nil {
		view.ReplyTo = &ReplyView{
			ID:        m.ReplyTo.ID,
			SenderID:  m.ReplyTo.SenderID,
			Sender:    senderView(&m.ReplyTo.Sender),
			Content:   m.ReplyTo.Content,
			IsDeleted: m.ReplyTo.IsDeleted,
		}
	} else if m.ReplyToID != nil {
		view.ReplyTo = &ReplyView{ID: *m.ReplyToID}
	}

	return view
}

func NewMessageViews(messages []models.Message) []MessageView {
	views := make([]MessageView, len(messages))
	for i := range messages {
		views[i] = NewMessageView(&messages[i])
	}
	return views
}

func senderView(u *models.User) *SenderView {
	// Отправитель не загружен
	if u == nil || u.ID == uuid.Nil {
		return nil
	}
	return &SenderView{
		ID:        u.ID,
		Name:      u.Name,
		Role:      u.Role,
		AvatarURL: u.AvatarURL,
	}
}
