package content

import (
	"time"

	"gorm.io/datatypes"
)

type SourceKind string

const (
	SourceYouTube SourceKind = "youtube"
	SourceAudio   SourceKind = "audio"
)

func (k SourceKind) Valid() bool {
	return k == SourceYouTube || k == SourceAudio
}

// Item is one ingested video or audio file. Rows are written once per
// successful ingestion and never updated.
type Item struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	ContentID  string     `gorm:"column:content_id;type:varchar(255);not null;uniqueIndex" json:"content_id"`
	SourceKind SourceKind `gorm:"column:source_kind;type:varchar(16);not null;index" json:"source_kind"`
	// FullText is every chunk text joined by a blank line.
	FullText   string         `gorm:"column:full_text;type:text;not null" json:"full_text"`
	Origin     string         `gorm:"column:origin;type:text;not null;default:''" json:"origin"`
	ChunkCount int            `gorm:"column:chunk_count;not null;default:0" json:"chunk_count"`
	Metadata   datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (Item) TableName() string { return "content_items" }
