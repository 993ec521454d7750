package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/thereayou/coursechat/internal/chat"
	"github.com/thereayou/coursechat/internal/models"
	"gorm.io/gorm"
)

func (d *Database) SaveUser(ctx context.Context, user *models.User) error {
	return errors.Wrap(d.db.WithContext(ctx).Create(user).Error, "database: save user")
}

func (d *Database) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := models.User{}
	if err := d.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, chat.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "database: get user")
	}
	return &user, nil
}

func (d *Database) TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := d.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_seen_at", at).Error
	return errors.Wrap(err, "database: touch last seen")
}
