package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JKristilere/smart-summarizer/internal/data/repos"
	types "github.com/JKristilere/smart-summarizer/internal/domain"
	"github.com/JKristilere/smart-summarizer/internal/ingestion"
	"github.com/JKristilere/smart-summarizer/internal/pkg/dbctx"
	pkgerrors "github.com/JKristilere/smart-summarizer/internal/pkg/errors"
	"github.com/JKristilere/smart-summarizer/internal/platform/logger"
	"github.com/JKristilere/smart-summarizer/internal/platform/openai"
	"github.com/JKristilere/smart-summarizer/internal/platform/vectorindex"
	"github.com/JKristilere/smart-summarizer/internal/platform/youtube"
)

// NoRelevantInformation is returned instead of calling the model when
// retrieval produced no context.
const NoRelevantInformation = "No relevant information found."

type GroundingService interface {
	IngestYouTube(ctx context.Context, url, query string) (*IngestResult, error)
	IngestAudio(ctx context.Context, upload AudioUpload, query string) (*IngestResult, error)
	Summarize(ctx context.Context, contentID string) (string, error)
	Query(ctx context.Context, query, contentID string, topK int) (string, error)
	ChatTurn(ctx context.Context, req ChatRequest) (string, error)
	// StreamChatTurn starts the reply and returns once fragments can be read.
	// The caller must drain Fragments; cancelling ctx stops the model.
	StreamChatTurn(ctx context.Context, req ChatRequest) (*ReplyStream, error)
	History(ctx context.Context, contentID string, limit int) ([]*types.ChatTurn, error)
	ClearHistory(ctx context.Context, contentID string) (int64, error)
	Content(ctx context.Context, contentID string) (*types.ContentItem, error)
}

// LLM is the chat half of the model gateway.
type LLM interface {
	Complete(ctx context.Context, messages []openai.Message) (string, error)
	Stream(ctx context.Context, messages []openai.Message, onDelta func(delta string) error) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type TranscriptSource interface {
	Fetch(ctx context.Context, videoID string) ([]youtube.Segment, error)
}

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

type GroundingConfig struct {
	ChunkSize       int
	ChunkOverlap    int
	HistoryTurns    int
	DefaultTopK     int
	MaxTopK         int
	LockTTL         time.Duration
	FinalizeTimeout time.Duration
}

func (c GroundingConfig) withDefaults() GroundingConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = ingestion.DefaultChunkSize
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = ingestion.DefaultChunkOverlap
	}
	if c.HistoryTurns <= 0 {
		c.HistoryTurns = 10
	}
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = 3
	}
	if c.MaxTopK <= 0 {
		c.MaxTopK = 20
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 10 * time.Minute
	}
	if c.FinalizeTimeout <= 0 {
		c.FinalizeTimeout = 10 * time.Second
	}
	return c
}

type GroundingDeps struct {
	Contents    repos.ContentItemRepo
	Turns       repos.ChatTurnRepo
	Index       vectorindex.Index
	Embedder    Embedder
	LLM         LLM
	Transcripts TranscriptSource
	Transcriber ingestion.Transcriber
	Locker      Locker
}

type groundingService struct {
	log         *logger.Logger
	contents    repos.ContentItemRepo
	turns       repos.ChatTurnRepo
	index       vectorindex.Index
	embedder    Embedder
	llm         LLM
	transcripts TranscriptSource
	transcriber ingestion.Transcriber
	locker      Locker
	cfg         GroundingConfig
}

func NewGroundingService(baseLog *logger.Logger, deps GroundingDeps, cfg GroundingConfig) (GroundingService, error) {
	var missing []string
	if deps.Contents == nil {
		missing = append(missing, "content repo")
	}
	if deps.Turns == nil {
		missing = append(missing, "chat turn repo")
	}
	if deps.Index == nil {
		missing = append(missing, "vector index")
	}
	if deps.Embedder == nil {
		missing = append(missing, "embedder")
	}
	if deps.LLM == nil {
		missing = append(missing, "llm")
	}
	if deps.Locker == nil {
		missing = append(missing, "locker")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: grounding service missing %s", pkgerrors.ErrConfiguration, strings.Join(missing, ", "))
	}
	return &groundingService{
		log:         baseLog.With("service", "GroundingService"),
		contents:    deps.Contents,
		turns:       deps.Turns,
		index:       deps.Index,
		embedder:    deps.Embedder,
		llm:         deps.LLM,
		transcripts: deps.Transcripts,
		transcriber: deps.Transcriber,
		locker:      deps.Locker,
		cfg:         cfg.withDefaults(),
	}, nil
}

func (s *groundingService) clampTopK(topK int) int {
	if topK <= 0 {
		return s.cfg.DefaultTopK
	}
	if topK > s.cfg.MaxTopK {
		return s.cfg.MaxTopK
	}
	return topK
}

// lookup returns the content item for contentID, or nil when none exists.
func (s *groundingService) lookup(ctx context.Context, contentID string) (*types.ContentItem, error) {
	item, err := s.contents.GetByContentID(dbctx.Context{Ctx: ctx}, contentID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// contentChunks gathers every chunk of an item in chunk order, falling back
// to the source-specific key used by older chunk writers.
func (s *groundingService) contentChunks(ctx context.Context, item *types.ContentItem) ([]string, error) {
	legacyKey := vectorindex.MetaVideoID
	if item.SourceKind == types.SourceAudio {
		legacyKey = vectorindex.MetaFileID
	}
	return s.firstMatch(ctx, string(item.SourceKind), item.ContentID, vectorindex.MetaContentID, legacyKey)
}

// orphanChunks finds chunks of an id that has no content item row, as left
// by older chunk writers. Every namespace is searched by content_id, then by
// video_id, then by file_id. The returned kind follows the key that matched.
func (s *groundingService) orphanChunks(ctx context.Context, contentID string) ([]string, types.SourceKind, error) {
	for _, k := range []struct {
		key  string
		kind types.SourceKind
	}{
		{vectorindex.MetaContentID, types.SourceYouTube},
		{vectorindex.MetaVideoID, types.SourceYouTube},
		{vectorindex.MetaFileID, types.SourceAudio},
	} {
		texts, err := s.index.FilterByMetadata(ctx, "", map[string]any{k.key: contentID})
		if err != nil {
			return nil, "", err
		}
		if len(texts) > 0 {
			s.log.Debug("Chunks found without content item", "content_id", contentID, "key", k.key, "count", len(texts))
			return texts, k.kind, nil
		}
	}
	return nil, "", nil
}

func (s *groundingService) firstMatch(ctx context.Context, namespace, contentID string, keys ...string) ([]string, error) {
	for _, key := range keys {
		texts, err := s.index.FilterByMetadata(ctx, namespace, map[string]any{key: contentID})
		if err != nil {
			return nil, err
		}
		if len(texts) > 0 {
			return texts, nil
		}
	}
	return nil, nil
}

func (s *groundingService) similar(ctx context.Context, namespace, query string, topK int) ([]string, error) {
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, pkgerrors.Wrap(pkgerrors.ErrEmbeddingFailure, fmt.Errorf("expected 1 query vector, got %d", len(vecs)))
	}
	return s.index.SimilaritySearch(ctx, namespace, vecs[0], topK)
}

func contentRef(contentID string) *string {
	if strings.TrimSpace(contentID) == "" {
		return nil
	}
	id := contentID
	return &id
}

func (s *groundingService) persistTurns(ctx context.Context, contentID string, turns ...*types.ChatTurn) error {
	ref := contentRef(contentID)
	for _, t := range turns {
		t.ContentID = ref
	}
	_, err := s.turns.Create(dbctx.Context{Ctx: ctx}, turns)
	return err
}
