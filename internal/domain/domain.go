package domain

import (
	"github.com/JKristilere/smart-summarizer/internal/domain/chat"
	"github.com/JKristilere/smart-summarizer/internal/domain/content"
)

type (
	ContentItem = content.Item
	SourceKind  = content.SourceKind
	ChatTurn    = chat.Turn
	ChatRole    = chat.Role
)

const (
	SourceYouTube = content.SourceYouTube
	SourceAudio   = content.SourceAudio

	RoleUser      = chat.RoleUser
	RoleAssistant = chat.RoleAssistant
)
