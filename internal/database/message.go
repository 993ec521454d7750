package database

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/thereayou/coursechat/internal/chat"
	"github.com/thereayou/coursechat/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// withRelations подгружает отправителя, цитируемое сообщение и реакции
func withRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Sender").
		Preload("ReplyTo").
		Preload("ReplyTo.Sender").
		Preload("Reactions", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC")
		})
}

func (d *Database) CreateMessage(ctx context.Context, message *models.Message) error {
	err := d.db.WithContext(ctx).Omit(clause.Associations).Create(message).Error
	return errors.Wrap(err, "database: create message")
}

func (d *Database) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var message models.Message
	if err := withRelations(d.db.WithContext(ctx)).First(&message, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, chat.ErrMessageNotFound
		}
		return nil, errors.Wrap(err, "database: get message")
	}
	return &message, nil
}

// UpdateMessage сохраняет только изменяемые поля; course_id и created_at не трогаются
func (d *Database) UpdateMessage(ctx context.Context, message *models.Message) error {
	res := d.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", message.ID).
		Select("content", "attachment_url", "attachment_name", "is_edited", "edited_at", "is_deleted", "deleted_at").
		Updates(map[string]interface{}{
			"content":         message.Content,
			"attachment_url":  message.AttachmentURL,
			"attachment_name": message.AttachmentName,
			"is_edited":       message.IsEdited,
			"edited_at":       message.EditedAt,
			"is_deleted":      message.IsDeleted,
			"deleted_at":      message.DeletedAt,
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "database: update message")
	}
	if res.RowsAffected == 0 {
		return chat.ErrMessageNotFound
	}
	return nil
}

// ToggleReaction выполняет переключение реакции в одной транзакции и возвращает полный набор реакций
func (d *Database) ToggleReaction(ctx context.Context, messageID, userID uuid.UUID, kind models.ReactionKind) ([]models.MessageReaction, error) {
	var reactions []models.MessageReaction

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&models.Message{}).Where("id = ?", messageID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return chat.ErrMessageNotFound
		}

		var current models.MessageReaction
		err := tx.Where("message_id = ? AND user_id = ?", messageID, userID).Take(&current).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		switch next := chat.NextReaction(current.Kind, kind); {
		case next == "":
			err = tx.Where("message_id = ? AND user_id = ?", messageID, userID).Delete(&models.MessageReaction{}).Error
		case current.Kind == "":
			err = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"kind"}),
			}).Create(&models.MessageReaction{MessageID: messageID, UserID: userID, Kind: next}).Error
		default:
			err = tx.Model(&models.MessageReaction{}).
				Where("message_id = ? AND user_id = ?", messageID, userID).
				Update("kind", next).Error
		}
		if err != nil {
			return err
		}

		return tx.Where("message_id = ?", messageID).Order("created_at ASC").Find(&reactions).Error
	})
	if err != nil {
		if errors.Is(err, chat.ErrMessageNotFound) {
			return nil, chat.ErrMessageNotFound
		}
		return nil, errors.Wrap(err, "database: toggle reaction")
	}

	return reactions, nil
}

// MarkRead повторные отметки игнорирует; id чужого курса пропускаются
func (d *Database) MarkRead(ctx context.Context, courseID, userID uuid.UUID, messageIDs []uuid.UUID, at time.Time) error {
	db := d.db.WithContext(ctx)

	var ids []uuid.UUID
	err := db.Model(&models.Message{}).
		Where("course_id = ? AND id IN ?", courseID, messageIDs).
		Pluck("id", &ids).Error
	if err != nil {
		return errors.Wrap(err, "database: filter read messages")
	}
	if len(ids) == 0 {
		return nil
	}

	reads := make([]models.MessageRead, len(ids))
	for i, id := range ids {
		reads[i] = models.MessageRead{MessageID: id, UserID: userID, ReadAt: at}
	}

	err = db.Clauses(clause.OnConflict{DoNothing: true}).Create(&reads).Error
	return errors.Wrap(err, "database: mark read")
}

// RecentMessages получает неудалённые сообщения курса от новых к старым
func (d *Database) RecentMessages(ctx context.Context, q chat.HistoryQuery) ([]models.Message, error) {
	var messages []models.Message

	query := d.db.WithContext(ctx).Where("course_id = ? AND is_deleted = ?", q.CourseID, false)
	// Если указан курсор, берём сообщения до него
	switch {
	case q.Before != nil && q.BeforeID != nil:
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", *q.Before, *q.Before, *q.BeforeID)
	case q.Before != nil:
		query = query.Where("created_at < ?", *q.Before)
	}

	err := withRelations(query).
		Order("created_at DESC, id DESC").
		Limit(q.Limit).
		Find(&messages).Error
	if err != nil {
		return nil, errors.Wrap(err, "database: recent messages")
	}
	return messages, nil
}

func (d *Database) SearchMessages(ctx context.Context, courseID uuid.UUID, term string, limit int) ([]models.Message, error) {
	var messages []models.Message

	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	err := withRelations(d.db.WithContext(ctx)).
		Where("course_id = ? AND is_deleted = ?", courseID, false).
		Where(`LOWER(content) LIKE ? ESCAPE '\'`, pattern).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, errors.Wrap(err, "database: search messages")
	}
	return messages, nil
}

func (d *Database) CountUnread(ctx context.Context, courseID, userID uuid.UUID) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("course_id = ? AND is_deleted = ? AND sender_id <> ?", courseID, false, userID).
		Where("NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = messages.id AND r.user_id = ?)", userID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "database: count unread")
	}
	return count, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
