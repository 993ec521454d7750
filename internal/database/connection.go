package database

import (
	"time"

	"github.com/pkg/errors"
	"github.com/thereayou/coursechat/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect подключается к Postgres и применяет миграции
func Connect(dsn string) (*Database, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	return Open(postgres.Open(dsn))
}

// Open работает с любым диалектом gorm (в тестах — sqlite в памяти)
func Open(dialector gorm.Dialector) (*Database, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, errors.Wrap(err, "database: open")
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return NewDatabase(db), nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Enrollment{},
		&models.Message{},
		&models.MessageReaction{},
		&models.MessageRead{},
	)
	return errors.Wrap(err, "database: migrate")
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
