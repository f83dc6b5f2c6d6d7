package repos

import (
	"gorm.io/gorm"

	"github.com/JKristilere/smart-summarizer/internal/data/repos/chat"
	"github.com/JKristilere/smart-summarizer/internal/data/repos/content"
	"github.com/JKristilere/smart-summarizer/internal/platform/logger"
)

type ChatTurnRepo = chat.ChatTurnRepo
type ContentItemRepo = content.ContentItemRepo

func NewChatTurnRepo(db *gorm.DB, baseLog *logger.Logger) ChatTurnRepo {
	return chat.NewChatTurnRepo(db, baseLog)
}

func NewContentItemRepo(db *gorm.DB, baseLog *logger.Logger) ContentItemRepo {
	return content.NewContentItemRepo(db, baseLog)
}
