package database

import (
	"github.com/thereayou/coursechat/internal/chat"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

var (
	_ chat.Store         = (*Database)(nil)
	_ chat.AccessOracle  = (*Database)(nil)
	_ chat.UserDirectory = (*Database)(nil)
)

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) DB() *gorm.DB {
	return d.db
}
