package chat

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JKristilere/smart-summarizer/internal/data/repos/testutil"
	types "github.com/JKristilere/smart-summarizer/internal/domain"
	"github.com/JKristilere/smart-summarizer/internal/pkg/dbctx"
	pkgerrors "github.com/JKristilere/smart-summarizer/internal/pkg/errors"
)

func strPtr(s string) *string { return &s }

func seedTurns(t *testing.T, repo ChatTurnRepo, contentID string, n int) {
	t.Helper()
	ctx := dbctx.Context{Ctx: context.Background()}
	for i := 0; i < n; i++ {
		_, err := repo.Create(ctx, []*types.ChatTurn{
			{Role: types.RoleUser, Message: fmt.Sprintf("q%d", i), ContentID: strPtr(contentID)},
			{Role: types.RoleAssistant, Message: fmt.Sprintf("a%d", i), ContentID: strPtr(contentID)},
		})
		require.NoError(t, err)
	}
}

func TestChatTurnRepoCreateAssignsSequentialIDs(t *testing.T) {
	repo := NewChatTurnRepo(testutil.DB(t), testutil.Logger(t))
	ctx := dbctx.Context{Ctx: context.Background()}

	rows, err := repo.Create(ctx, []*types.ChatTurn{
		{Role: types.RoleUser, Message: "hello", ContentID: strPtr("vid")},
		{Role: types.RoleAssistant, Message: "hi", ContentID: strPtr("vid")},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Less(t, rows[0].ID, rows[1].ID)
	assert.False(t, rows[0].CreatedAt.IsZero())

	got, err := repo.Get(ctx, rows[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Message)
	assert.Equal(t, "vid", *got.ContentID)
}

func TestChatTurnRepoRejectsUnknownRole(t *testing.T) {
	repo := NewChatTurnRepo(testutil.DB(t), testutil.Logger(t))
	_, err := repo.Create(dbctx.Context{Ctx: context.Background()}, []*types.ChatTurn{{Role: "system", Message: "x"}})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidArgument)
}

func TestChatTurnRepoGetMissing(t *testing.T) {
	repo := NewChatTurnRepo(testutil.DB(t), testutil.Logger(t))
	_, err := repo.Get(dbctx.Context{Ctx: context.Background()}, 42)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestChatTurnRepoListByContentIDIsChronological(t *testing.T) {
	repo := NewChatTurnRepo(testutil.DB(t), testutil.Logger(t))
	seedTurns(t, repo, "vid", 3)
	seedTurns(t, repo, "other", 1)

	rows, err := repo.ListByContentID(dbctx.Context{Ctx: context.Background()}, "vid", 0)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	want := []string{"q0", "a0", "q1", "a1", "q2", "a2"}
	for i, row := range rows {
		assert.Equal(t, want[i], row.Message)
		if i > 0 {
			assert.False(t, row.CreatedAt.Before(rows[i-1].CreatedAt))
		}
	}
}

func TestChatTurnRepoListRecentKeepsNewestInOrder(t *testing.T) {
	repo := NewChatTurnRepo(testutil.DB(t), testutil.Logger(t))
	seedTurns(t, repo, "vid", 4)

	rows, err := repo.ListRecent(dbctx.Context{Ctx: context.Background()}, "vid", 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "a2", rows[0].Message)
	assert.Equal(t, "q3", rows[1].Message)
	assert.Equal(t, "a3", rows[2].Message)
}

func TestChatTurnRepoListByContentIDKeepsNewestPastLimit(t *testing.T) {
	repo := NewChatTurnRepo(testutil.DB(t), testutil.Logger(t))
	seedTurns(t, repo, "vid", 3)

	rows, err := repo.ListByContentID(dbctx.Context{Ctx: context.Background()}, "vid", 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "q2", rows[0].Message)
	assert.Equal(t, "a2", rows[1].Message)
}

func TestChatTurnRepoListByContentIDClampsLimit(t *testing.T) {
	repo := NewChatTurnRepo(testutil.DB(t), testutil.Logger(t))
	seedTurns(t, repo, "vid", DefaultHistoryLimit/2+1)

	rows, err := repo.ListByContentID(dbctx.Context{Ctx: context.Background()}, "vid", 0)
	require.NoError(t, err)
	require.Len(t, rows, DefaultHistoryLimit)
	assert.Equal(t, "q1", rows[0].Message)
	assert.Equal(t, fmt.Sprintf("a%d", DefaultHistoryLimit/2), rows[len(rows)-1].Message)
}

func TestChatTurnRepoDeleteByContentIDIsIdempotent(t *testing.T) {
	repo := NewChatTurnRepo(testutil.DB(t), testutil.Logger(t))
	ctx := dbctx.Context{Ctx: context.Background()}
	seedTurns(t, repo, "vid", 2)
	seedTurns(t, repo, "keep", 1)

	n, err := repo.DeleteByContentID(ctx, "vid")
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	n, err = repo.DeleteByContentID(ctx, "vid")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	rows, err := repo.ListByContentID(ctx, "vid", 10)
	require.NoError(t, err)
	assert.Empty(t, rows)

	kept, err := repo.ListByContentID(ctx, "keep", 10)
	require.NoError(t, err)
	assert.Len(t, kept, 2)
}

func TestChatTurnRepoRollsBackWithOuterTx(t *testing.T) {
	conn := testutil.DB(t)
	repo := NewChatTurnRepo(conn, testutil.Logger(t))

	tx := conn.Begin()
	_, err := repo.Create(dbctx.Context{Ctx: context.Background(), Tx: tx}, []*types.ChatTurn{
		{Role: types.RoleUser, Message: "lost", ContentID: strPtr("vid")},
	})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback().Error)

	rows, err := repo.ListByContentID(dbctx.Context{Ctx: context.Background()}, "vid", 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
