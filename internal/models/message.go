package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageType string

const (
	MessageText         MessageType = "text"
	MessageFile         MessageType = "file"
	MessageImage        MessageType = "image"
	MessageAnnouncement MessageType = "announcement"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageFile, MessageImage, MessageAnnouncement:
		return true
	}
	return false
}

type ReactionKind string

const (
	ReactionLike  ReactionKind = "like"
	ReactionLove  ReactionKind = "love"
	ReactionLaugh ReactionKind = "laugh"
	ReactionWow   ReactionKind = "wow"
	ReactionSad   ReactionKind = "sad"
	ReactionAngry ReactionKind = "angry"
)

var ReactionKinds = []ReactionKind{ReactionLike, ReactionLove, ReactionLaugh, ReactionWow, ReactionSad, ReactionAngry}

func (k ReactionKind) Valid() bool {
	for _, kind := range ReactionKinds {
		if k == kind {
			return true
		}
	}
	return false
}

type Message struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey"`
	CourseID       uuid.UUID   `gorm:"type:uuid;not null;index:idx_messages_course_created,priority:1"`
	SenderID       uuid.UUID   `gorm:"type:uuid;not null;index"`
	Content        string      `gorm:"type:text;not null"`
	Type           MessageType `gorm:"size:16;not null;default:'text'"`
	ReplyToID      *uuid.UUID  `gorm:"type:uuid;index"`
	AttachmentURL  string
	AttachmentName string
	IsEdited       bool `gorm:"not null;default:false"`
	EditedAt       *time.Time
	IsDeleted      bool `gorm:"not null;default:false"`
	DeletedAt      *time.Time
	CreatedAt      time.Time `gorm:"not null;index:idx_messages_course_created,priority:2"`

	// Связи
	Sender    User              `gorm:"foreignKey:SenderID"`
	ReplyTo   *Message          `gorm:"foreignKey:ReplyToID"`
	Reactions []MessageReaction `gorm:"foreignKey:MessageID"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// MessageReaction: ключ (message_id, user_id), у пользователя не больше одной реакции на сообщение
type MessageReaction struct {
	MessageID uuid.UUID    `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID    `gorm:"type:uuid;primaryKey"`
	Kind      ReactionKind `gorm:"size:16;not null"`
	CreatedAt time.Time
}

type MessageRead struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	ReadAt    time.Time `gorm:"not null"`
}
