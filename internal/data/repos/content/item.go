package content

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	types "github.com/JKristilere/smart-summarizer/internal/domain"
	"github.com/JKristilere/smart-summarizer/internal/pkg/dbctx"
	pkgerrors "github.com/JKristilere/smart-summarizer/internal/pkg/errors"
	"github.com/JKristilere/smart-summarizer/internal/platform/logger"
)

type ContentItemRepo interface {
	Create(dbc dbctx.Context, item *types.ContentItem) (*types.ContentItem, error)
	GetByContentID(dbc dbctx.Context, contentID string) (*types.ContentItem, error)
	List(dbc dbctx.Context, kind types.SourceKind, limit int) ([]*types.ContentItem, error)
	Delete(dbc dbctx.Context, contentID string) error
}

type contentItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentItemRepo(db *gorm.DB, log *logger.Logger) ContentItemRepo {
	return &contentItemRepo{db: db, log: log.With("repo", "ContentItemRepo")}
}

func (r *contentItemRepo) tx(dbc dbctx.Context) *gorm.DB {
	return dbc.Session(r.db)
}

func (r *contentItemRepo) Create(dbc dbctx.Context, item *types.ContentItem) (*types.ContentItem, error) {
	if item == nil || strings.TrimSpace(item.ContentID) == "" {
		return nil, fmt.Errorf("%w: content item requires content_id", pkgerrors.ErrInvalidArgument)
	}
	if !item.SourceKind.Valid() {
		return nil, fmt.Errorf("%w: unknown source kind %q", pkgerrors.ErrInvalidArgument, item.SourceKind)
	}
	if err := r.tx(dbc).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

func (r *contentItemRepo) GetByContentID(dbc dbctx.Context, contentID string) (*types.ContentItem, error) {
	var out types.ContentItem
	err := r.tx(dbc).Where("content_id = ?", strings.TrimSpace(contentID)).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("content %q: %w", contentID, pkgerrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *contentItemRepo) List(dbc dbctx.Context, kind types.SourceKind, limit int) ([]*types.ContentItem, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := r.tx(dbc).Order("created_at DESC").Order("id DESC").Limit(limit)
	if kind != "" {
		q = q.Where("source_kind = ?", kind)
	}
	var out []*types.ContentItem
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *contentItemRepo) Delete(dbc dbctx.Context, contentID string) error {
	return r.tx(dbc).Where("content_id = ?", strings.TrimSpace(contentID)).Delete(&types.ContentItem{}).Error
}
