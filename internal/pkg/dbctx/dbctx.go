package dbctx

import (
	"context"

	"gorm.io/gorm"

	"github.com/JKristilere/smart-summarizer/internal/pkg/ctxutil"
)

// Context carries the request context into a repo call, plus the
// transaction to join when the call is part of a larger write.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// Session returns the handle a repo should query with: the open
// transaction when there is one, base otherwise, bound to Ctx.
func (c Context) Session(base *gorm.DB) *gorm.DB {
	db := c.Tx
	if db == nil {
		db = base
	}
	return db.WithContext(ctxutil.Default(c.Ctx))
}
