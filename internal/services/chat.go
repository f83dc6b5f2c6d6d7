package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/JKristilere/smart-summarizer/internal/data/repos/chat"
	types "github.com/JKristilere/smart-summarizer/internal/domain"
	"github.com/JKristilere/smart-summarizer/internal/observability"
	"github.com/JKristilere/smart-summarizer/internal/pkg/dbctx"
	pkgerrors "github.com/JKristilere/smart-summarizer/internal/pkg/errors"
	"github.com/JKristilere/smart-summarizer/internal/platform/openai"
)

type ChatRequest struct {
	Query               string
	ContentID           string
	IncludeVectorSearch bool
	TopK                int
}

func (s *groundingService) ChatTurn(ctx context.Context, req ChatRequest) (string, error) {
	ctx, span := observability.Tracer().Start(ctx, "grounding.ChatTurn")
	defer span.End()

	req, messages, err := s.prepareChat(ctx, req)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String("content.id", req.ContentID), attribute.Int("chat.messages", len(messages)))

	reply, err := s.llm.Complete(ctx, messages)
	if err != nil {
		return "", err
	}
	err = s.persistTurns(ctx, req.ContentID,
		&types.ChatTurn{Role: types.RoleUser, Message: req.Query},
		&types.ChatTurn{Role: types.RoleAssistant, Message: reply},
	)
	if err != nil {
		return "", fmt.Errorf("persist chat turns: %w", err)
	}
	observability.Current().IncChatTurn(string(types.RoleUser))
	observability.Current().IncChatTurn(string(types.RoleAssistant))
	return reply, nil
}

func (s *groundingService) StreamChatTurn(ctx context.Context, req ChatRequest) (*ReplyStream, error) {
	req, messages, err := s.prepareChat(ctx, req)
	if err != nil {
		return nil, err
	}
	produce := func(ctx context.Context, emit func(string) error) (string, error) {
		ctx, span := observability.Tracer().Start(ctx, "grounding.StreamChatTurn")
		defer span.End()
		span.SetAttributes(attribute.String("content.id", req.ContentID))
		return s.llm.Stream(ctx, messages, emit)
	}
	finalize := func(ctx context.Context, reply string, streamErr error) {
		s.finalizeStream(ctx, req, reply, streamErr)
	}
	return startReplyStream(ctx, s.cfg.FinalizeTimeout, produce, finalize), nil
}

// finalizeStream records the question and whatever part of the reply was
// produced. Failures are logged and never reach the caller.
func (s *groundingService) finalizeStream(ctx context.Context, req ChatRequest, reply string, streamErr error) {
	outcome := "complete"
	switch {
	case errors.Is(streamErr, context.Canceled) || errors.Is(streamErr, context.DeadlineExceeded):
		outcome = "cancelled"
	case streamErr != nil:
		outcome = "error"
	}
	observability.Current().IncStreamFinalized(outcome)

	turns := []*types.ChatTurn{{Role: types.RoleUser, Message: req.Query}}
	if strings.TrimSpace(reply) != "" {
		turns = append(turns, &types.ChatTurn{Role: types.RoleAssistant, Message: reply})
	}
	if err := s.persistTurns(ctx, req.ContentID, turns...); err != nil {
		s.log.Error("Failed to persist streamed chat turn",
			"content_id", req.ContentID,
			"outcome", outcome,
			"reply_chars", len(reply),
			"error", err,
		)
		return
	}
	for _, t := range turns {
		observability.Current().IncChatTurn(string(t.Role))
	}
	if streamErr != nil {
		s.log.Warn("Chat stream ended early", "content_id", req.ContentID, "outcome", outcome, "error", streamErr)
	}
}

// prepareChat validates req and builds the prompt from recent history and,
// when requested, retrieved context.
func (s *groundingService) prepareChat(ctx context.Context, req ChatRequest) (ChatRequest, []openai.Message, error) {
	req.Query = strings.TrimSpace(req.Query)
	req.ContentID = strings.TrimSpace(req.ContentID)
	if req.Query == "" {
		return req, nil, fmt.Errorf("%w: query required", pkgerrors.ErrInvalidArgument)
	}
	if req.ContentID == "" {
		return req, nil, fmt.Errorf("%w: file_id required", pkgerrors.ErrInvalidArgument)
	}
	req.TopK = s.clampTopK(req.TopK)

	history, err := s.turns.ListRecent(dbctx.Context{Ctx: ctx}, req.ContentID, s.cfg.HistoryTurns)
	if err != nil {
		return req, nil, fmt.Errorf("load chat history: %w", err)
	}

	var relevant string
	if req.IncludeVectorSearch {
		relevant, err = s.chatContext(ctx, req)
		if err != nil {
			return req, nil, err
		}
	}
	return req, BuildChatMessages(relevant, req.Query, history), nil
}

// chatContext uses the item's own chunks as a gate: only content with indexed
// chunks gets similarity hits attached. Ids without a content item are
// searched across every namespace.
func (s *groundingService) chatContext(ctx context.Context, req ChatRequest) (string, error) {
	item, err := s.lookup(ctx, req.ContentID)
	if err != nil {
		return "", err
	}
	var (
		gate      []string
		namespace string
	)
	if item != nil {
		namespace = string(item.SourceKind)
		gate, err = s.contentChunks(ctx, item)
	} else {
		gate, _, err = s.orphanChunks(ctx, req.ContentID)
	}
	if err != nil {
		return "", err
	}
	if len(gate) == 0 {
		observability.Current().IncRetrieval("chat", "empty")
		return "", nil
	}
	hits, err := s.similar(ctx, namespace, req.Query, req.TopK)
	if err != nil {
		return "", err
	}
	outcome := "hit"
	if len(hits) == 0 {
		outcome = "empty"
	}
	observability.Current().IncRetrieval("chat", outcome)
	return JoinContext(hits), nil
}

func (s *groundingService) History(ctx context.Context, contentID string, limit int) ([]*types.ChatTurn, error) {
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return nil, fmt.Errorf("%w: file_id required", pkgerrors.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = chat.DefaultHistoryLimit
	}
	if limit > chat.MaxHistoryLimit {
		limit = chat.MaxHistoryLimit
	}
	return s.turns.ListByContentID(dbctx.Context{Ctx: ctx}, contentID, limit)
}

func (s *groundingService) ClearHistory(ctx context.Context, contentID string) (int64, error) {
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return 0, fmt.Errorf("%w: file_id required", pkgerrors.ErrInvalidArgument)
	}
	n, err := s.turns.DeleteByContentID(dbctx.Context{Ctx: ctx}, contentID)
	if err != nil {
		return 0, err
	}
	s.log.Info("Chat history cleared", "content_id", contentID, "deleted", n)
	return n, nil
}

func (s *groundingService) Content(ctx context.Context, contentID string) (*types.ContentItem, error) {
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return nil, fmt.Errorf("%w: file_id required", pkgerrors.ErrInvalidArgument)
	}
	return s.contents.GetByContentID(dbctx.Context{Ctx: ctx}, contentID)
}
