package chat

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/thereayou/coursechat/internal/models"
)

type SendRequest struct {
	CourseID       uuid.UUID
	Content        string
	Type           models.MessageType
	ReplyTo        *uuid.UUID
	AttachmentURL  string
	AttachmentName string
}

func validateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrEmptyContent
	}
	if utf8.RuneCountInString(trimmed) > MaxContentLength {
		return "", ErrContentTooLong
	}
	return trimmed, nil
}

// Snapshot возвращает последние сообщения комнаты в хронологическом порядке.
// Права не проверяет: вызывается после Authorize, когда соединение уже в комнате
func (s *Service) Snapshot(ctx context.Context, courseID uuid.UUID) ([]MessageView, error) {
	messages, err := s.store.RecentMessages(ctx, HistoryQuery{CourseID: courseID, Limit: s.snapshotSize})
	if err != nil {
		return nil, s.fail("load snapshot", err)
	}
	reverse(messages)
	return NewMessageViews(messages), nil
}

func (s *Service) Send(ctx context.Context, id Identity, req SendRequest) (MessageView, error) {
	content, err := validateContent(req.Content)
	if err != nil {
		return MessageView{}, err
	}

	msgType := req.Type
	if msgType == "" {
		msgType = models.MessageText
	}
	if !msgType.Valid() {
		return MessageView{}, ErrInvalidMessageType
	}

	access, err := s.authorize(ctx, id, req.CourseID)
	if err != nil {
		return MessageView{}, err
	}

	if msgType == models.MessageAnnouncement && !id.Policy().CanAnnounce(access) {
		return MessageView{}, denied("only instructors and admins can post announcements")
	}

	if req.ReplyTo != nil {
		parent, err := s.store.GetMessage(ctx, *req.ReplyTo)
		if err != nil {
			if errors.Is(err, ErrMessageNotFound) {
				return MessageView{}, ErrInvalidReply
			}
			return MessageView{}, s.fail("load reply target", err)
		}
		if parent.CourseID != req.CourseID || parent.IsDeleted {
			return MessageView{}, ErrInvalidReply
		}
	}

	message := &models.Message{
		ID:             uuid.New(),
		CourseID:       req.CourseID,
		SenderID:       id.UserID,
		Content:        content,
		Type:           msgType,
		ReplyToID:      req.ReplyTo,
		AttachmentURL:  strings.TrimSpace(req.AttachmentURL),
		AttachmentName: strings.TrimSpace(req.AttachmentName),
		CreatedAt:      s.now(),
	}

	if err := s.store.CreateMessage(ctx, message); err != nil {
		return MessageView{}, s.fail("create message", err)
	}

	view, err := s.reload(ctx, message.ID)
	if err != nil {
		return MessageView{}, err
	}

	s.broadcast(view.CourseID, EventNewMessage, view)
	return view, nil
}

func (s *Service) Edit(ctx context.Context, id Identity, messageID uuid.UUID, newContent string) (MessageView, error) {
	content, err := validateContent(newContent)
	if err != nil {
		return MessageView{}, err
	}

	message, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return MessageView{}, s.fail("load message", err)
	}
	if message.IsDeleted {
		return MessageView{}, ErrMessageNotFound
	}
	if message.SenderID != id.UserID {
		return MessageView{}, denied("you can only edit your own messages")
	}
	if s.now().Sub(message.CreatedAt) > s.editWindow {
		return MessageView{}, ErrEditWindowExpired
	}

	// Тот же текст — не правка
	if content == message.Content {
		return NewMessageView(message), nil
	}

	now := s.now()
	message.Content = content
	message.IsEdited = true
	message.EditedAt = &now

	if err := s.store.UpdateMessage(ctx, message); err != nil {
		return MessageView{}, s.fail("update message", err)
	}

	view, err := s.reload(ctx, message.ID)
	if err != nil {
		return MessageView{}, err
	}

	s.broadcast(view.CourseID, EventMessageEdited, view)
	return view, nil
}

func (s *Service) Delete(ctx context.Context, id Identity, messageID uuid.UUID) (MessageView, error) {
	message, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return MessageView{}, s.fail("load message", err)
	}

	if message.SenderID != id.UserID {
		access, err := s.access.GetCourseAccess(ctx, id.UserID, message.CourseID)
		if err != nil {
			return MessageView{}, s.fail("get course access", err)
		}
		if !id.Policy().CanModerate(access) {
			return MessageView{}, denied("only the sender, the course instructor or an admin can delete this message")
		}
	}

	if message.IsDeleted {
		return NewMessageView(message), nil
	}

	now := s.now()
	message.Content = DeletedPlaceholder
	message.AttachmentURL = ""
	message.AttachmentName = ""
	message.IsDeleted = true
	message.DeletedAt = &now

	if err := s.store.UpdateMessage(ctx, message); err != nil {
		return MessageView{}, s.fail("soft delete message", err)
	}

	view, err := s.reload(ctx, message.ID)
	if err != nil {
		return MessageView{}, err
	}

	s.broadcast(view.CourseID, EventMessageDeleted, view)
	return view, nil
}

func (s *Service) React(ctx context.Context, id Identity, messageID uuid.UUID, kind models.ReactionKind) (ReactionState, error) {
	if !kind.Valid() {
		return ReactionState{}, ErrInvalidReaction
	}

	message, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return ReactionState{}, s.fail("load message", err)
	}
	if message.IsDeleted {
		return ReactionState{}, ErrMessageNotFound
	}

	if _, err := s.authorize(ctx, id, message.CourseID); err != nil {
		return ReactionState{}, err
	}

	reactions, err := s.store.ToggleReaction(ctx, message.ID, id.UserID, kind)
	if err != nil {
		return ReactionState{}, s.fail("toggle reaction", err)
	}

	state := NewReactionState(message.ID, message.CourseID, reactions)
	s.broadcast(message.CourseID, EventReactionUpdated, state)
	return state, nil
}

// MarkRead идемпотентна и ничего не рассылает: счётчик непрочитанных запрашивается клиентом
func (s *Service) MarkRead(ctx context.Context, id Identity, courseID uuid.UUID, messageIDs []uuid.UUID) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if _, err := s.authorize(ctx, id, courseID); err != nil {
		return err
	}
	if err := s.store.MarkRead(ctx, courseID, id.UserID, messageIDs, s.now()); err != nil {
		return s.fail("mark read", err)
	}
	return nil
}

func reverse(messages []models.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
