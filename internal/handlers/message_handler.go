package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/coursechat/internal/chat"
	"github.com/thereayou/coursechat/internal/handlers/dto"
	"github.com/thereayou/coursechat/internal/logger"
	"github.com/thereayou/coursechat/internal/models"
	"github.com/thereayou/coursechat/internal/websocket"
)

// defaultOpTimeout ограничивает обращения к хранилищу из одного события
const defaultOpTimeout = 10 * time.Second

// MessageHandler обрабатывает события, пришедшие по WebSocket
type MessageHandler struct {
	chat      *chat.Service
	hub       *websocket.Hub
	log       logger.Logger
	opTimeout time.Duration
}

var _ websocket.ClientMessageHandler = (*MessageHandler)(nil)

func NewMessageHandler(service *chat.Service, hub *websocket.Hub, log logger.Logger) *MessageHandler {
	return &MessageHandler{
		chat:      service,
		hub:       hub,
		log:       log,
		opTimeout: defaultOpTimeout,
	}
}

func (h *MessageHandler) HandleMessage(client *websocket.Client, msg *websocket.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.opTimeout)
	defer cancel()

	switch msg.Type {
	case websocket.TypeJoinRoom:
		return h.handleJoin(ctx, client, msg)

	case websocket.TypeLeaveRoom:
		if msg.CourseID == nil {
			client.Hub.LeaveCurrentRoom(client)
			return nil
		}
		client.Hub.LeaveRoom(client, *msg.CourseID)
		return nil

	case websocket.TypeSendMessage:
		return h.handleSend(ctx, client, msg)

	case websocket.TypeEditMessage:
		return h.handleEdit(ctx, client, msg)

	case websocket.TypeDeleteMessage:
		return h.handleDelete(ctx, client, msg)

	case websocket.TypeReact:
		return h.handleReact(ctx, client, msg)

	case websocket.TypeMarkRead:
		return h.handleMarkRead(ctx, client, msg)

	case websocket.TypeTypingStart:
		courseID, err := roomOf(client, msg)
		if err != nil {
			return err
		}
		return h.hub.StartTyping(client, courseID)

	case websocket.TypeTypingStop:
		courseID, err := roomOf(client, msg)
		if err != nil {
			return err
		}
		return h.hub.StopTyping(client, courseID)

	default:
		h.log.Debugf("Unknown message type: %s", msg.Type)
		return chat.ErrInvalidPayload
	}
}

// decode разбирает data события и проверяет его тегами binding
func decode(msg *websocket.Message, v interface{}) error {
	if len(msg.Data) == 0 {
		return chat.ErrInvalidPayload
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return chat.ErrInvalidPayload
	}
	return dto.Validate(v)
}

// roomOf возвращает комнату события: курс из конверта, иначе текущая комната соединения.
// Действовать можно только в той комнате, где соединение находится
func roomOf(client *websocket.Client, msg *websocket.Message) (uuid.UUID, error) {
	current, ok := client.Room()
	if !ok {
		return uuid.Nil, chat.ErrNotInRoom
	}
	if msg.CourseID != nil && *msg.CourseID != current {
		return uuid.Nil, chat.ErrNotInRoom
	}
	return current, nil
}

// targetCourse — курс из конверта, иначе текущая комната. Права проверяет сервис чата
func targetCourse(client *websocket.Client, msg *websocket.Message) (uuid.UUID, error) {
	if msg.CourseID != nil {
		return *msg.CourseID, nil
	}
	if current, ok := client.Room(); ok {
		return current, nil
	}
	return uuid.Nil, chat.ErrNotInRoom
}

func (h *MessageHandler) handleJoin(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	if msg.CourseID == nil {
		return chat.ErrInvalidPayload
	}
	courseID := *msg.CourseID

	if err := h.chat.Authorize(ctx, client.Identity, courseID); err != nil {
		return err
	}

	// Снимок читается уже после входа в комнату, чтобы не потерять сообщения между ними
	err := h.hub.JoinRoom(client, courseID, func() ([]chat.MessageView, error) {
		return h.chat.Snapshot(ctx, courseID)
	})
	if err == websocket.ErrNotRegistered {
		// Соединение закрылось во время входа, отвечать некому
		h.log.Debugf("join %s by %s dropped: %v", courseID, client.UserID(), err)
		return nil
	}
	return err
}

func (h *MessageHandler) handleSend(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	courseID, err := targetCourse(client, msg)
	if err != nil {
		return err
	}

	var payload dto.SendMessageRequest
	if err := decode(msg, &payload); err != nil {
		return err
	}

	_, err = h.chat.Send(ctx, client.Identity, chat.SendRequest{
		CourseID:       courseID,
		Content:        payload.Content,
		Type:           models.MessageType(payload.Type),
		ReplyTo:        payload.ReplyTo,
		AttachmentURL:  payload.AttachmentURL,
		AttachmentName: payload.AttachmentName,
	})
	if err != nil {
		return err
	}

	// Отправка сообщения завершает набор текста
	if client.IsInRoom(courseID) {
		_ = h.hub.StopTyping(client, courseID)
	}
	return nil
}

func (h *MessageHandler) handleEdit(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	var payload dto.EditMessagePayload
	if err := decode(msg, &payload); err != nil {
		return err
	}
	_, err := h.chat.Edit(ctx, client.Identity, payload.MessageID, payload.Content)
	return err
}

func (h *MessageHandler) handleDelete(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	var payload dto.MessageRef
	if err := decode(msg, &payload); err != nil {
		return err
	}
	_, err := h.chat.Delete(ctx, client.Identity, payload.MessageID)
	return err
}

func (h *MessageHandler) handleReact(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	var payload dto.ReactPayload
	if err := decode(msg, &payload); err != nil {
		return err
	}
	_, err := h.chat.React(ctx, client.Identity, payload.MessageID, models.ReactionKind(payload.Reaction))
	return err
}

func (h *MessageHandler) handleMarkRead(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	courseID, err := targetCourse(client, msg)
	if err != nil {
		return err
	}

	var payload dto.MarkReadRequest
	if err := decode(msg, &payload); err != nil {
		return err
	}
	return h.chat.MarkRead(ctx, client.Identity, courseID, payload.MessageIDs)
}
