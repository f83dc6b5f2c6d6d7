package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lockredis "github.com/JKristilere/smart-summarizer/internal/clients/redis"
	"github.com/JKristilere/smart-summarizer/internal/data/repos"
	"github.com/JKristilere/smart-summarizer/internal/data/repos/testutil"
	types "github.com/JKristilere/smart-summarizer/internal/domain"
	"github.com/JKristilere/smart-summarizer/internal/pkg/dbctx"
	pkgerrors "github.com/JKristilere/smart-summarizer/internal/pkg/errors"
	"github.com/JKristilere/smart-summarizer/internal/platform/openai"
	"github.com/JKristilere/smart-summarizer/internal/platform/vectorindex"
	"github.com/JKristilere/smart-summarizer/internal/platform/youtube"
)

const testDim = 3

type fakeLLM struct {
	mu        sync.Mutex
	calls     [][]openai.Message
	reply     string
	err       error
	fragments []string
	hang      bool
}

func (f *fakeLLM) record(msgs []openai.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]openai.Message, len(msgs))
	copy(cp, msgs)
	f.calls = append(f.calls, cp)
}

func (f *fakeLLM) Complete(_ context.Context, msgs []openai.Message) (string, error) {
	f.record(msgs)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) Stream(ctx context.Context, msgs []openai.Message, onDelta func(string) error) (string, error) {
	f.record(msgs)
	var b strings.Builder
	for _, frag := range f.fragments {
		if err := onDelta(frag); err != nil {
			return b.String(), err
		}
		b.WriteString(frag)
	}
	if f.hang {
		<-ctx.Done()
		return b.String(), ctx.Err()
	}
	return b.String(), f.err
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeLLM) lastUserMessage(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	msgs := f.calls[len(f.calls)-1]
	return msgs[len(msgs)-1].Content
}

// fakeEmbedder maps text onto a small deterministic vector.
type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{1, float32(len(t)%7) + 1, float32(strings.Count(t, "e")) + 1}
	}
	return out, nil
}

type fakeTranscripts struct {
	segs  []youtube.Segment
	err   error
	calls int
}

func (f *fakeTranscripts) Fetch(_ context.Context, _ string) ([]youtube.Segment, error) {
	f.calls++
	return f.segs, f.err
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _, _ string, _ []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

type failingContents struct {
	repos.ContentItemRepo
	createErr error
}

func (f failingContents) Create(dbc dbctx.Context, item *types.ContentItem) (*types.ContentItem, error) {
	return nil, f.createErr
}

type harness struct {
	svc         GroundingService
	llm         *fakeLLM
	embedder    *fakeEmbedder
	transcripts *fakeTranscripts
	transcriber *fakeTranscriber
	index       *vectorindex.Memory
	contents    repos.ContentItemRepo
	turns       repos.ChatTurnRepo
	locker      lockredis.Locker
}

type harnessOption func(*harness, *GroundingDeps)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	log := testutil.Logger(t)
	db := testutil.DB(t)
	h := &harness{
		llm:      &fakeLLM{reply: "model reply"},
		embedder: &fakeEmbedder{},
		transcripts: &fakeTranscripts{segs: []youtube.Segment{
			{Text: "first window about rivers", Start: 0},
			{Text: "second window about mountains", Start: 30 * time.Second},
			{Text: "third window about the sea", Start: 60 * time.Second},
		}},
		transcriber: &fakeTranscriber{text: "spoken text about engines and electric cars"},
		index:       vectorindex.NewMemory(log, testDim),
		contents:    repos.NewContentItemRepo(db, log),
		turns:       repos.NewChatTurnRepo(db, log),
		locker:      lockredis.NewLocalLocker(),
	}
	deps := GroundingDeps{
		Contents:    h.contents,
		Turns:       h.turns,
		Index:       h.index,
		Embedder:    h.embedder,
		LLM:         h.llm,
		Transcripts: h.transcripts,
		Transcriber: h.transcriber,
		Locker:      h.locker,
	}
	for _, opt := range opts {
		opt(h, &deps)
	}
	svc, err := NewGroundingService(log, deps, GroundingConfig{ChunkSize: 40, ChunkOverlap: 5})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) chunks(t *testing.T, ns, contentID string) []string {
	t.Helper()
	out, err := h.index.FilterByMetadata(context.Background(), ns, map[string]any{vectorindex.MetaContentID: contentID})
	require.NoError(t, err)
	return out
}

func assertStage(t *testing.T, err error, stage string) {
	t.Helper()
	var failed *pkgerrors.IngestionFailedError
	require.True(t, errors.As(err, &failed), "expected IngestionFailedError, got %v", err)
	assert.Equal(t, stage, failed.Stage)
}

func TestNewGroundingServiceRequiresCollaborators(t *testing.T) {
	_, err := NewGroundingService(testutil.Logger(t), GroundingDeps{}, GroundingConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrConfiguration))
	assert.Contains(t, err.Error(), "vector index")
}

func TestIngestYouTubeEndToEnd(t *testing.T) {
	h := newHarness(t)
	h.llm.reply = "a summary of rivers, mountains and the sea"
	ctx := context.Background()

	res, err := h.svc.IngestYouTube(ctx, "https://www.youtube.com/watch?v=abc12345678", "")
	require.NoError(t, err)
	assert.Equal(t, "abc12345678", res.ContentID)
	assert.Equal(t, types.SourceYouTube, res.SourceKind)
	assert.Equal(t, 3, res.Chunks)
	assert.False(t, res.Skipped)
	assert.Equal(t, h.llm.reply, res.Summary)

	chunks := h.chunks(t, "youtube", "abc12345678")
	assert.Equal(t, []string{
		"first window about rivers",
		"second window about mountains",
		"third window about the sea",
	}, chunks)

	item, err := h.svc.Content(ctx, "abc12345678")
	require.NoError(t, err)
	assert.Equal(t, strings.Join(chunks, "\n\n"), item.FullText)
	assert.Equal(t, types.SourceYouTube, item.SourceKind)
	assert.Equal(t, 3, item.ChunkCount)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc12345678", item.Origin)

	require.Equal(t, 1, h.llm.callCount())
	prompt := h.llm.lastUserMessage(t)
	assert.Contains(t, prompt, "summary of the youtube")
	assert.Contains(t, prompt, strings.Join(chunks, "\n\n"))

	hist, err := h.svc.History(ctx, "abc12345678", 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, types.RoleAssistant, hist[0].Role)
	assert.Equal(t, h.llm.reply, hist[0].Message)
	require.NotNil(t, hist[0].ContentID)
	assert.Equal(t, "abc12345678", *hist[0].ContentID)
}

func TestIngestYouTubeIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.IngestYouTube(ctx, "https://youtu.be/abc12345678", "")
	require.NoError(t, err)
	res, err := h.svc.IngestYouTube(ctx, "https://www.youtube.com/watch?v=abc12345678", "")
	require.NoError(t, err)

	assert.True(t, res.Skipped)
	assert.Equal(t, 1, h.transcripts.calls)
	assert.Len(t, h.chunks(t, "youtube", "abc12345678"), 3)
	assert.Equal(t, 2, h.llm.callCount(), "each request still gets a summary")
}

func TestIngestYouTubeInvalidURL(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.IngestYouTube(context.Background(), "https://www.youtube.com/", "")
	require.Error(t, err)
	assertStage(t, err, pkgerrors.StageResolve)
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidReference))
	assert.Equal(t, 0, h.transcripts.calls)
	assert.Equal(t, 0, h.llm.callCount())
}

func TestIngestYouTubeTranscriptFailure(t *testing.T) {
	h := newHarness(t)
	h.transcripts.err = youtube.ErrNoTranscript
	_, err := h.svc.IngestYouTube(context.Background(), "https://www.youtube.com/watch?v=abc12345678", "")
	require.Error(t, err)
	assertStage(t, err, pkgerrors.StageTranscript)
	assert.Equal(t, 0, h.embedder.calls)
}

func TestIngestEmbeddingFailureWritesNothing(t *testing.T) {
	h := newHarness(t)
	h.embedder.err = pkgerrors.Wrap(pkgerrors.ErrEmbeddingFailure, fmt.Errorf("model down"))

	_, err := h.svc.IngestYouTube(context.Background(), "https://www.youtube.com/watch?v=abc12345678", "")
	require.Error(t, err)
	assertStage(t, err, pkgerrors.StageEmbed)
	assert.True(t, errors.Is(err, pkgerrors.ErrEmbeddingFailure))
	assert.Empty(t, h.chunks(t, "", "abc12345678"))
	_, err = h.svc.Content(context.Background(), "abc12345678")
	assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
}

func TestIngestCompensatesWhenPersistFails(t *testing.T) {
	h := newHarness(t, func(h *harness, deps *GroundingDeps) {
		deps.Contents = failingContents{ContentItemRepo: h.contents, createErr: errors.New("disk full")}
	})

	_, err := h.svc.IngestYouTube(context.Background(), "https://www.youtube.com/watch?v=abc12345678", "")
	require.Error(t, err)
	assertStage(t, err, pkgerrors.StagePersist)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, h.chunks(t, "", "abc12345678"), "vector rows are removed when the item row fails")
	assert.Equal(t, 0, h.llm.callCount())
}

func TestIngestRejectsConcurrentIngestion(t *testing.T) {
	h := newHarness(t)
	release, ok, err := h.locker.Acquire(context.Background(), "ingest:abc12345678", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	_, err = h.svc.IngestYouTube(context.Background(), "https://www.youtube.com/watch?v=abc12345678", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrIngestionInProgress))
	assert.Equal(t, 0, h.transcripts.calls)
}

func TestIngestAudioRejectsUnsupportedType(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.IngestAudio(context.Background(), AudioUpload{
		Filename:    "notes.txt",
		ContentType: "text/plain",
		Data:        []byte("hello"),
	}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrUnsupportedMediaType))
	assert.Equal(t, 0, h.transcriber.calls)

	items, err := h.contents.List(dbctx.Context{Ctx: context.Background()}, "", 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestIngestAudioWithQuery(t *testing.T) {
	h := newHarness(t)
	h.llm.reply = "electric cars use engines differently"
	ctx := context.Background()

	res, err := h.svc.IngestAudio(ctx, AudioUpload{
		Filename:    "talk.mp3",
		ContentType: "audio/mpeg",
		Data:        []byte("ID3"),
	}, "what about electric cars?")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.ContentID, "talk.mp3"))
	assert.Equal(t, types.SourceAudio, res.SourceKind)
	assert.Greater(t, res.Chunks, 1, "transcript is split at the configured chunk size")
	assert.Equal(t, h.llm.reply, res.Summary)

	prompt := h.llm.lastUserMessage(t)
	assert.Contains(t, prompt, "'what about electric cars?'")

	hist, err := h.svc.History(ctx, res.ContentID, 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, types.RoleUser, hist[0].Role)
	assert.Equal(t, types.RoleAssistant, hist[1].Role)

	item, err := h.svc.Content(ctx, res.ContentID)
	require.NoError(t, err)
	assert.Equal(t, "talk.mp3", item.Origin)
	assert.Equal(t, strings.Join(h.chunks(t, "audio", res.ContentID), "\n\n"), item.FullText)
}

func TestIngestAudioSummaryUsesAudioWording(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.IngestAudio(context.Background(), AudioUpload{
		Filename: "talk.wav", ContentType: "audio/wav", Data: []byte("RIFF"),
	}, "")
	require.NoError(t, err)
	assert.Contains(t, h.llm.lastUserMessage(t), "summary of the audio transcript")
}

func TestSummarizeUnknownContentSkipsModel(t *testing.T) {
	h := newHarness(t)
	out, err := h.svc.Summarize(context.Background(), "missing-id")
	require.NoError(t, err)
	assert.Equal(t, NoRelevantInformation, out)
	assert.Equal(t, 0, h.llm.callCount())
}

func TestQueryWithEmptyIndexSkipsModel(t *testing.T) {
	h := newHarness(t)
	out, err := h.svc.Query(context.Background(), "anything?", "", 3)
	require.NoError(t, err)
	assert.Equal(t, NoRelevantInformation, out)
	assert.Equal(t, 0, h.llm.callCount())

	out, err = h.svc.Query(context.Background(), "anything?", "unknown", 3)
	require.NoError(t, err)
	assert.Equal(t, NoRelevantInformation, out)
	assert.Equal(t, 0, h.llm.callCount())
}

func TestQueryPlacesItemChunksBeforeSimilarityHits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.IngestYouTube(ctx, "https://www.youtube.com/watch?v=abc12345678", "")
	require.NoError(t, err)

	_, err = h.svc.Query(ctx, "tell me about the sea", "abc12345678", 3)
	require.NoError(t, err)

	chunks := h.chunks(t, "youtube", "abc12345678")
	prompt := h.llm.lastUserMessage(t)
	ctxStart := strings.Index(prompt, "Context:\n") + len("Context:\n")
	assert.True(t, strings.HasPrefix(prompt[ctxStart:], strings.Join(chunks, "\n\n")))
	for _, c := range chunks {
		assert.Equal(t, 2, strings.Count(prompt, c), "duplicates are kept: %q", c)
	}
}

func TestChatTurnPersistsTwoRowsPerTurn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		h.llm.reply = fmt.Sprintf("answer %d", i)
		reply, err := h.svc.ChatTurn(ctx, ChatRequest{Query: fmt.Sprintf("question %d", i), ContentID: "abc12345678"})
		require.NoError(t, err)
		assert.Equal(t, h.llm.reply, reply)
	}

	hist, err := h.svc.History(ctx, "abc12345678", 0)
	require.NoError(t, err)
	require.Len(t, hist, 6)
	for i := 0; i < 3; i++ {
		assert.Equal(t, types.RoleUser, hist[2*i].Role)
		assert.Equal(t, fmt.Sprintf("question %d", i), hist[2*i].Message)
		assert.Equal(t, types.RoleAssistant, hist[2*i+1].Role)
		assert.Equal(t, fmt.Sprintf("answer %d", i), hist[2*i+1].Message)
	}
}

func TestChatTurnReplaysOnlyRecentHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := "abc12345678"
	var seed []*types.ChatTurn
	for i := 0; i < 12; i++ {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAssistant
		}
		seed = append(seed, &types.ChatTurn{Role: role, Message: fmt.Sprintf("turn %02d", i), ContentID: &id})
	}
	_, err := h.turns.Create(dbctx.Context{Ctx: ctx}, seed)
	require.NoError(t, err)

	_, err = h.svc.ChatTurn(ctx, ChatRequest{Query: "next", ContentID: id})
	require.NoError(t, err)

	msgs := h.llm.calls[0]
	require.Len(t, msgs, 12, "system + 10 history + question")
	assert.Equal(t, openai.RoleSystem, msgs[0].Role)
	assert.Equal(t, "turn 02", msgs[1].Content)
	assert.Equal(t, "turn 11", msgs[10].Content)
	assert.Equal(t, openai.RoleAssistant, msgs[10].Role)
	assert.Equal(t, "next", msgs[11].Content)
}

func TestChatTurnWithoutIndexedContentSendsRawQuery(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.ChatTurn(context.Background(), ChatRequest{
		Query: "what is this?", ContentID: "abc12345678", IncludeVectorSearch: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "what is this?", h.llm.lastUserMessage(t))
	assert.Equal(t, 0, h.embedder.calls)
}

func TestChatTurnAttachesRelevantContext(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.IngestYouTube(ctx, "https://www.youtube.com/watch?v=abc12345678", "")
	require.NoError(t, err)

	_, err = h.svc.ChatTurn(ctx, ChatRequest{
		Query: "rivers?", ContentID: "abc12345678", IncludeVectorSearch: true, TopK: 1,
	})
	require.NoError(t, err)
	msg := h.llm.lastUserMessage(t)
	assert.True(t, strings.HasPrefix(msg, "rivers?"))
	assert.Contains(t, msg, "relevant context")
}

// seedOrphanChunk writes a chunk that only older writers would produce: no
// content item row and the id carried under key alone.
func seedOrphanChunk(t *testing.T, h *harness, ns, key, id, text string) {
	t.Helper()
	_, err := h.index.Add(context.Background(), ns, "row-"+id, []string{text}, [][]float32{{1, 2, 3}}, map[string]any{key: id})
	require.NoError(t, err)
}

func TestChatTurnFindsChunksWithoutContentItem(t *testing.T) {
	h := newHarness(t)
	seedOrphanChunk(t, h, "youtube", vectorindex.MetaVideoID, "legacyVID01", "legacy rivers text")

	_, err := h.svc.ChatTurn(context.Background(), ChatRequest{
		Query: "rivers?", ContentID: "legacyVID01", IncludeVectorSearch: true, TopK: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, h.embedder.calls)
	msg := h.llm.lastUserMessage(t)
	assert.Contains(t, msg, "relevant context")
	assert.Contains(t, msg, "legacy rivers text")
}

func TestSummarizeFindsChunksWithoutContentItem(t *testing.T) {
	h := newHarness(t)
	seedOrphanChunk(t, h, "audio", vectorindex.MetaFileID, "talk_ab12.mp3", "legacy engine talk")

	out, err := h.svc.Summarize(context.Background(), "talk_ab12.mp3")
	require.NoError(t, err)
	assert.Equal(t, "model reply", out)
	msg := h.llm.lastUserMessage(t)
	assert.Contains(t, msg, "legacy engine talk")
	assert.Contains(t, msg, "summary of the audio transcript")
}

func TestQueryFindsChunksWithoutContentItem(t *testing.T) {
	h := newHarness(t)
	seedOrphanChunk(t, h, "youtube", vectorindex.MetaVideoID, "legacyVID01", "legacy rivers text")

	_, err := h.svc.Query(context.Background(), "rivers?", "legacyVID01", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(h.llm.lastUserMessage(t), "legacy rivers text"))
}

func TestOrphanLookupIgnoresOtherIDs(t *testing.T) {
	h := newHarness(t)
	seedOrphanChunk(t, h, "youtube", vectorindex.MetaVideoID, "legacyVID01", "legacy rivers text")

	out, err := h.svc.Summarize(context.Background(), "otherVID002")
	require.NoError(t, err)
	assert.Equal(t, NoRelevantInformation, out)
	assert.Equal(t, 0, h.llm.callCount())
}

func TestHistoryReturnsNewestTurns(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		h.llm.reply = fmt.Sprintf("answer %d", i)
		_, err := h.svc.ChatTurn(ctx, ChatRequest{Query: fmt.Sprintf("question %d", i), ContentID: "abc12345678"})
		require.NoError(t, err)
	}

	hist, err := h.svc.History(ctx, "abc12345678", 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "question 2", hist[0].Message)
	assert.Equal(t, "answer 2", hist[1].Message)
}

func TestChatTurnModelFailureWritesNothing(t *testing.T) {
	h := newHarness(t)
	h.llm.err = pkgerrors.Wrap(pkgerrors.ErrLLMRateLimited, errors.New("429"))

	_, err := h.svc.ChatTurn(context.Background(), ChatRequest{Query: "hi", ContentID: "abc12345678"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrLLMRateLimited))

	hist, err := h.svc.History(context.Background(), "abc12345678", 0)
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestChatTurnValidates(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.ChatTurn(context.Background(), ChatRequest{Query: " ", ContentID: "x"})
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidArgument))
	_, err = h.svc.ChatTurn(context.Background(), ChatRequest{Query: "hi"})
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidArgument))
}

func drain(s *ReplyStream) []string {
	var out []string
	for f := range s.Fragments() {
		out = append(out, f)
	}
	return out
}

func TestStreamChatTurnPersistsFullReply(t *testing.T) {
	h := newHarness(t)
	h.llm.fragments = []string{"Hel", "lo", " there"}
	ctx := context.Background()

	stream, err := h.svc.StreamChatTurn(ctx, ChatRequest{Query: "hi", ContentID: "abc12345678"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo", " there"}, drain(stream))

	reply, err := stream.Wait()
	require.NoError(t, err)
	assert.Equal(t, "Hello there", reply)

	hist, err := h.svc.History(ctx, "abc12345678", 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "hi", hist[0].Message)
	assert.Equal(t, "Hello there", hist[1].Message)
}

func TestStreamChatTurnCancelPersistsPartialReply(t *testing.T) {
	h := newHarness(t)
	h.llm.fragments = []string{"par", "tial"}
	h.llm.hang = true

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := h.svc.StreamChatTurn(ctx, ChatRequest{Query: "hi", ContentID: "abc12345678"})
	require.NoError(t, err)

	assert.Equal(t, "par", <-stream.Fragments())
	assert.Equal(t, "tial", <-stream.Fragments())
	cancel()
	drain(stream)

	reply, err := stream.Wait()
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "partial", reply)

	hist, err := h.svc.History(context.Background(), "abc12345678", 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, types.RoleUser, hist[0].Role)
	assert.Equal(t, "partial", hist[1].Message)
}

func TestStreamChatTurnEmptyReplyPersistsQuestionOnly(t *testing.T) {
	h := newHarness(t)
	h.llm.err = pkgerrors.Wrap(pkgerrors.ErrLLMUnavailable, errors.New("down"))

	stream, err := h.svc.StreamChatTurn(context.Background(), ChatRequest{Query: "hi", ContentID: "abc12345678"})
	require.NoError(t, err)
	assert.Empty(t, drain(stream))
	_, err = stream.Wait()
	assert.True(t, errors.Is(err, pkgerrors.ErrLLMUnavailable))

	hist, err := h.svc.History(context.Background(), "abc12345678", 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, types.RoleUser, hist[0].Role)
}

func TestClearHistoryIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.ChatTurn(ctx, ChatRequest{Query: "hi", ContentID: "abc12345678"})
	require.NoError(t, err)

	n, err := h.svc.ClearHistory(ctx, "abc12345678")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = h.svc.ClearHistory(ctx, "abc12345678")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	hist, err := h.svc.History(ctx, "abc12345678", 0)
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestContentNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Content(context.Background(), "nope")
	assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
}
