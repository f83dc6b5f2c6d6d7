package db

import (
	"gorm.io/gorm"

	types "github.com/JKristilere/smart-summarizer/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.ContentItem{},
		&types.ChatTurn{},
	)
}
