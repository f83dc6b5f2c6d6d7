package chat

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one persisted chat message. Turns are append-only and ordered by
// (created_at, id) within a content id.
type Turn struct {
	ID      uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Role    Role   `gorm:"column:role;type:varchar(16);not null" json:"role"`
	Message string `gorm:"column:message;type:text;not null" json:"message"`
	// ContentID is nil only for legacy turns written without a content item.
	ContentID *string   `gorm:"column:file_id;type:varchar(255);index:idx_conversations_file_created,priority:1" json:"file_id"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime;index:idx_conversations_file_created,priority:2" json:"created_at"`
}

func (Turn) TableName() string { return "conversations" }
