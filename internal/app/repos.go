package app

import (
	"gorm.io/gorm"

	"github.com/JKristilere/smart-summarizer/internal/data/repos"
	"github.com/JKristilere/smart-summarizer/internal/platform/logger"
)

type Repos struct {
	ContentItem repos.ContentItemRepo
	ChatTurn    repos.ChatTurnRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		ContentItem: repos.NewContentItemRepo(db, log),
		ChatTurn:    repos.NewChatTurnRepo(db, log),
	}
}
