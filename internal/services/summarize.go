package services

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	types "github.com/JKristilere/smart-summarizer/internal/domain"
	"github.com/JKristilere/smart-summarizer/internal/observability"
	pkgerrors "github.com/JKristilere/smart-summarizer/internal/pkg/errors"
)

// Summarize summarizes every chunk of an ingested item and records the reply
// as an assistant turn. Ids with no chunks under any key get the fixed
// no-information reply without a model call.
func (s *groundingService) Summarize(ctx context.Context, contentID string) (string, error) {
	ctx, span := observability.Tracer().Start(ctx, "grounding.Summarize")
	defer span.End()
	span.SetAttributes(attribute.String("content.id", contentID))

	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return "", fmt.Errorf("%w: content id required", pkgerrors.ErrInvalidArgument)
	}
	item, err := s.lookup(ctx, contentID)
	if err != nil {
		return "", err
	}
	var (
		chunks []string
		kind   types.SourceKind
	)
	if item != nil {
		kind = item.SourceKind
		chunks, err = s.contentChunks(ctx, item)
	} else {
		chunks, kind, err = s.orphanChunks(ctx, contentID)
	}
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		observability.Current().IncRetrieval("filter", "empty")
		return NoRelevantInformation, nil
	}
	observability.Current().IncRetrieval("filter", "hit")
	span.SetAttributes(attribute.Int("retrieval.chunks", len(chunks)))

	reply, err := s.llm.Complete(ctx, BuildSummaryMessages(kind, JoinContext(chunks)))
	if err != nil {
		return "", err
	}
	if err := s.persistTurns(ctx, contentID, &types.ChatTurn{Role: types.RoleAssistant, Message: reply}); err != nil {
		return "", fmt.Errorf("persist summary: %w", err)
	}
	observability.Current().IncChatTurn(string(types.RoleAssistant))
	return reply, nil
}

// Query answers a question from retrieved context. With a content id the
// item's own chunks come first, then the similarity hits from its
// namespace; duplicates are kept. Without one, every namespace is searched.
func (s *groundingService) Query(ctx context.Context, query, contentID string, topK int) (string, error) {
	ctx, span := observability.Tracer().Start(ctx, "grounding.Query")
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("%w: query required", pkgerrors.ErrInvalidArgument)
	}
	contentID = strings.TrimSpace(contentID)
	topK = s.clampTopK(topK)
	span.SetAttributes(attribute.String("content.id", contentID), attribute.Int("retrieval.top_k", topK))

	chunks, err := s.queryContext(ctx, query, contentID, topK)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		observability.Current().IncRetrieval("query", "empty")
		return NoRelevantInformation, nil
	}
	observability.Current().IncRetrieval("query", "hit")

	reply, err := s.llm.Complete(ctx, BuildQueryMessages(query, JoinContext(chunks)))
	if err != nil {
		return "", err
	}
	err = s.persistTurns(ctx, contentID,
		&types.ChatTurn{Role: types.RoleUser, Message: query},
		&types.ChatTurn{Role: types.RoleAssistant, Message: reply},
	)
	if err != nil {
		return "", fmt.Errorf("persist query turns: %w", err)
	}
	observability.Current().IncChatTurn(string(types.RoleUser))
	observability.Current().IncChatTurn(string(types.RoleAssistant))
	return reply, nil
}

func (s *groundingService) queryContext(ctx context.Context, query, contentID string, topK int) ([]string, error) {
	if contentID == "" {
		return s.similar(ctx, "", query, topK)
	}
	item, err := s.lookup(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		orphan, _, err := s.orphanChunks(ctx, contentID)
		if err != nil || len(orphan) == 0 {
			return nil, err
		}
		hits, err := s.similar(ctx, "", query, topK)
		if err != nil {
			return nil, err
		}
		return append(orphan, hits...), nil
	}

	var filtered, similar []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := s.contentChunks(gctx, item)
		filtered = out
		return err
	})
	g.Go(func() error {
		out, err := s.similar(gctx, string(item.SourceKind), query, topK)
		similar = out
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	merged := make([]string, 0, len(filtered)+len(similar))
	merged = append(merged, filtered...)
	merged = append(merged, similar...)
	return merged, nil
}
