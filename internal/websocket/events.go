package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/coursechat/internal/chat"
	"github.com/thereayou/coursechat/internal/models"
)

// MessageType определяет типы событий
type MessageType string

const (
	// Системные типы
	TypePing  MessageType = "ping"
	TypePong  MessageType = "pong"
	TypeError MessageType = "error"

	// От клиента
	TypeJoinRoom      MessageType = "join-room"
	TypeLeaveRoom     MessageType = "leave-room"
	TypeSendMessage   MessageType = "send-message"
	TypeEditMessage   MessageType = "edit-message"
	TypeDeleteMessage MessageType = "delete-message"
	TypeReact         MessageType = "react-to-message"
	TypeMarkRead      MessageType = "mark-read"
	TypeTypingStart   MessageType = "typing-start"
	TypeTypingStop    MessageType = "typing-stop"

	// От сервера
	TypeRecentMessages    MessageType = "recent-messages"
	TypeRoomUsers         MessageType = "room-users"
	TypeNewMessage        MessageType = chat.EventNewMessage
	TypeMessageEdited     MessageType = chat.EventMessageEdited
	TypeMessageDeleted    MessageType = chat.EventMessageDeleted
	TypeReactionUpdated   MessageType = chat.EventReactionUpdated
	TypeUserJoined        MessageType = "user-joined"
	TypeUserLeft          MessageType = "user-left"
	TypeUserTyping        MessageType = "user-typing"
	TypeUserStoppedTyping MessageType = "user-stopped-typing"
)

// Message — конверт любого кадра в обе стороны
type Message struct {
	Type      MessageType     `json:"type"`
	CourseID  *uuid.UUID      `json:"course_id,omitempty"`
	UserID    *uuid.UUID      `json:"user_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type MemberView struct {
	UserID uuid.UUID   `json:"user_id"`
	Name   string      `json:"name"`
	Role   models.Role `json:"role"`
}

func memberOf(id chat.Identity) MemberView {
	return MemberView{UserID: id.UserID, Name: id.DisplayName, Role: id.Role}
}

type RecentMessagesPayload struct {
	CourseID uuid.UUID          `json:"course_id"`
	Messages []chat.MessageView `json:"messages"`
}

type RoomUsersPayload struct {
	CourseID uuid.UUID    `json:"course_id"`
	Users    []MemberView `json:"users"`
}

type TypingPayload struct {
	CourseID uuid.UUID `json:"course_id"`
	UserID   uuid.UUID `json:"user_id"`
	Name     string    `json:"name"`
}

type ErrorPayload struct {
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Event   MessageType `json:"event,omitempty"`
}

// Presence — кто сейчас в комнате и кто печатает
type Presence struct {
	CourseID uuid.UUID    `json:"course_id"`
	Online   []MemberView `json:"online"`
	Typing   []MemberView `json:"typing"`
}

func encode(msgType MessageType, courseID, userID *uuid.UUID, data interface{}, now time.Time) ([]byte, error) {
	msg := Message{
		Type:      msgType,
		CourseID:  courseID,
		UserID:    userID,
		Timestamp: now,
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}

	return json.Marshal(msg)
}
