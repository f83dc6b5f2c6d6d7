package chat

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

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

type ChatTurnRepo interface {
	Create(dbc dbctx.Context, rows []*types.ChatTurn) ([]*types.ChatTurn, error)
	Get(dbc dbctx.Context, id uint) (*types.ChatTurn, error)
	// ListByContentID returns the newest limit turns in chronological order.
	// limit is clamped to [1, MaxHistoryLimit], zero meaning the default.
	ListByContentID(dbc dbctx.Context, contentID string, limit int) ([]*types.ChatTurn, error)
	// ListRecent returns the newest n turns, still in chronological order.
	ListRecent(dbc dbctx.Context, contentID string, n int) ([]*types.ChatTurn, error)
	Delete(dbc dbctx.Context, id uint) error
	DeleteByContentID(dbc dbctx.Context, contentID string) (int64, error)
}

type chatTurnRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatTurnRepo(db *gorm.DB, log *logger.Logger) ChatTurnRepo {
	return &chatTurnRepo{db: db, log: log.With("repo", "ChatTurnRepo")}
}

func (r *chatTurnRepo) tx(dbc dbctx.Context) *gorm.DB {
	return dbc.Session(r.db)
}

func (r *chatTurnRepo) Create(dbc dbctx.Context, rows []*types.ChatTurn) ([]*types.ChatTurn, error) {
	if len(rows) == 0 {
		return []*types.ChatTurn{}, nil
	}
	for i, row := range rows {
		if row == nil {
			return nil, fmt.Errorf("%w: nil chat turn at %d", pkgerrors.ErrInvalidArgument, i)
		}
		if row.Role != types.RoleUser && row.Role != types.RoleAssistant {
			return nil, fmt.Errorf("%w: unknown role %q", pkgerrors.ErrInvalidArgument, row.Role)
		}
	}
	// Rows are inserted one at a time so created_at and id grow together.
	err := r.tx(dbc).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *chatTurnRepo) Get(dbc dbctx.Context, id uint) (*types.ChatTurn, error) {
	var out types.ChatTurn
	err := r.tx(dbc).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("chat turn %d: %w", id, pkgerrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *chatTurnRepo) ListByContentID(dbc dbctx.Context, contentID string, limit int) ([]*types.ChatTurn, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return r.ListRecent(dbc, contentID, limit)
}

func (r *chatTurnRepo) ListRecent(dbc dbctx.Context, contentID string, n int) ([]*types.ChatTurn, error) {
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return nil, fmt.Errorf("%w: missing content_id", pkgerrors.ErrInvalidArgument)
	}
	if n <= 0 {
		return []*types.ChatTurn{}, nil
	}
	var out []*types.ChatTurn
	if err := r.tx(dbc).
		Where("file_id = ?", contentID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(n).
		Find(&out).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *chatTurnRepo) Delete(dbc dbctx.Context, id uint) error {
	return r.tx(dbc).Where("id = ?", id).Delete(&types.ChatTurn{}).Error
}

func (r *chatTurnRepo) DeleteByContentID(dbc dbctx.Context, contentID string) (int64, error) {
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return 0, fmt.Errorf("%w: missing content_id", pkgerrors.ErrInvalidArgument)
	}
	res := r.tx(dbc).Where("file_id = ?", contentID).Delete(&types.ChatTurn{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		r.log.Debug("Chat history cleared", "content_id", contentID, "rows", res.RowsAffected)
	}
	return res.RowsAffected, nil
}
