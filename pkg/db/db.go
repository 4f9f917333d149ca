package db

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pnibot/pnibot/pkg/db/models"
)

type DB struct {
	DB *gorm.DB
}

func New(dsn string, logLevel logger.LogLevel) (*DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	return &DB{DB: db}, nil
}

// UpdateSchema migrates the database to the current model definitions.
func (d *DB) UpdateSchema() error {
	return d.DB.AutoMigrate(&models.ChatConversation{})
}
