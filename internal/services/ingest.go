package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"

	types "github.com/JKristilere/smart-summarizer/internal/domain"
	"github.com/JKristilere/smart-summarizer/internal/ingestion"
	"github.com/JKristilere/smart-summarizer/internal/observability"
	"github.com/JKristilere/smart-summarizer/internal/pkg/dbctx"
	pkgerrors "github.com/JKristilere/smart-summarizer/internal/pkg/errors"
	"github.com/JKristilere/smart-summarizer/internal/platform/vectorindex"
)

// ingestQueryTopK is the similarity depth used when a query accompanies an
// ingestion request.
const ingestQueryTopK = 5

type AudioUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type IngestResult struct {
	ContentID  string
	SourceKind types.SourceKind
	Summary    string
	Chunks     int
	// Skipped is set when the content was already indexed and nothing was written.
	Skipped bool
}

type ingestJob struct {
	contentID string
	kind      types.SourceKind
	origin    string
	extra     map[string]any
	// acquire produces the chunk texts and runs its own stages.
	acquire func(ctx context.Context) ([]string, error)
}

func (s *groundingService) IngestYouTube(ctx context.Context, rawURL, query string) (*IngestResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "grounding.IngestYouTube")
	defer span.End()

	if s.transcripts == nil {
		return nil, fmt.Errorf("%w: no transcript source configured", pkgerrors.ErrConfiguration)
	}
	var videoID string
	err := s.stage(ctx, types.SourceYouTube, pkgerrors.StageResolve, func(context.Context) error {
		id, err := ingestion.ResolveYouTubeID(rawURL)
		videoID = id
		return err
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("content.id", videoID))

	res, err := s.ingest(ctx, ingestJob{
		contentID: videoID,
		kind:      types.SourceYouTube,
		origin:    strings.TrimSpace(rawURL),
		extra: map[string]any{
			vectorindex.MetaVideoID: videoID,
			"source":                strings.TrimSpace(rawURL),
		},
		acquire: func(ctx context.Context) ([]string, error) {
			var texts []string
			err := s.stage(ctx, types.SourceYouTube, pkgerrors.StageTranscript, func(ctx context.Context) error {
				segs, err := s.transcripts.Fetch(ctx, videoID)
				if err != nil {
					return err
				}
				for _, seg := range segs {
					if t := strings.TrimSpace(seg.Text); t != "" {
						texts = append(texts, t)
					}
				}
				if len(texts) == 0 {
					return fmt.Errorf("transcript for %s is empty", videoID)
				}
				return nil
			})
			return texts, err
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return s.answer(ctx, res, query)
}

func (s *groundingService) IngestAudio(ctx context.Context, upload AudioUpload, query string) (*IngestResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "grounding.IngestAudio")
	defer span.End()

	if !ingestion.IsAllowedAudioType(upload.ContentType) {
		return nil, fmt.Errorf("%w: %q", pkgerrors.ErrUnsupportedMediaType, upload.ContentType)
	}
	if len(upload.Data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", pkgerrors.ErrInvalidArgument)
	}
	if s.transcriber == nil {
		return nil, fmt.Errorf("%w: no transcriber configured", pkgerrors.ErrConfiguration)
	}
	fileID := ingestion.MintAudioID(upload.Filename)
	span.SetAttributes(attribute.String("content.id", fileID), attribute.Int("audio.bytes", len(upload.Data)))

	res, err := s.ingest(ctx, ingestJob{
		contentID: fileID,
		kind:      types.SourceAudio,
		origin:    upload.Filename,
		extra: map[string]any{
			vectorindex.MetaFileID: fileID,
			"filename":             upload.Filename,
		},
		acquire: func(ctx context.Context) ([]string, error) {
			var transcript string
			err := s.stage(ctx, types.SourceAudio, pkgerrors.StageTranscribe, func(ctx context.Context) error {
				text, err := s.transcriber.Transcribe(ctx, upload.Filename, upload.ContentType, upload.Data)
				if err != nil {
					return err
				}
				if strings.TrimSpace(text) == "" {
					return fmt.Errorf("transcription of %s is empty", upload.Filename)
				}
				transcript = text
				return nil
			})
			if err != nil {
				return nil, err
			}
			var chunks []string
			err = s.stage(ctx, types.SourceAudio, pkgerrors.StageSplit, func(context.Context) error {
				out, err := ingestion.Split(transcript, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
				chunks = out
				return err
			})
			return chunks, err
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return s.answer(ctx, res, query)
}

// ingest runs the shared check, lock, embed, index and persist sequence.
func (s *groundingService) ingest(ctx context.Context, job ingestJob) (*IngestResult, error) {
	source := string(job.kind)
	res := &IngestResult{ContentID: job.contentID, SourceKind: job.kind}

	done, err := s.alreadyIngested(ctx, job)
	if err != nil {
		return nil, err
	}
	if done {
		s.log.Info("Content already ingested, skipping writes", "content_id", job.contentID, "source", source)
		observability.Current().IncIngest(source, "skipped")
		res.Skipped = true
		return res, nil
	}

	release, ok, err := s.locker.Acquire(ctx, "ingest:"+job.contentID, s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire ingestion lock: %w", err)
	}
	if !ok {
		observability.Current().IncIngest(source, "in_progress")
		return nil, fmt.Errorf("%w: %s", pkgerrors.ErrIngestionInProgress, job.contentID)
	}
	defer release()

	// Another request may have finished between the first check and the lock.
	if done, err = s.alreadyIngested(ctx, job); err != nil {
		return nil, err
	} else if done {
		observability.Current().IncIngest(source, "skipped")
		res.Skipped = true
		return res, nil
	}

	texts, err := job.acquire(ctx)
	if err != nil {
		observability.Current().IncIngest(source, "failed")
		return nil, err
	}

	var vectors [][]float32
	err = s.stage(ctx, job.kind, pkgerrors.StageEmbed, func(ctx context.Context) error {
		out, err := s.embedder.Embed(ctx, texts)
		vectors = out
		return err
	})
	if err != nil {
		observability.Current().IncIngest(source, "failed")
		return nil, err
	}

	var added int
	err = s.stage(ctx, job.kind, pkgerrors.StageIndex, func(ctx context.Context) error {
		n, err := s.index.Add(ctx, source, job.contentID, texts, vectors, job.extra)
		added = n
		return err
	})
	if err != nil {
		s.compensate(ctx, job)
		observability.Current().IncIngest(source, "failed")
		return nil, err
	}

	err = s.stage(ctx, job.kind, pkgerrors.StagePersist, func(ctx context.Context) error {
		meta, _ := json.Marshal(job.extra)
		_, err := s.contents.Create(dbctx.Context{Ctx: ctx}, &types.ContentItem{
			ContentID:  job.contentID,
			SourceKind: job.kind,
			FullText:   JoinContext(texts),
			Origin:     job.origin,
			ChunkCount: added,
			Metadata:   datatypes.JSON(meta),
		})
		return err
	})
	if err != nil {
		s.compensate(ctx, job)
		observability.Current().IncIngest(source, "failed")
		return nil, err
	}

	s.log.Info("Content ingested", "content_id", job.contentID, "source", source, "chunks", added)
	observability.Current().IncIngest(source, "ok")
	res.Chunks = added
	return res, nil
}

func (s *groundingService) alreadyIngested(ctx context.Context, job ingestJob) (bool, error) {
	item, err := s.lookup(ctx, job.contentID)
	if err != nil {
		return false, pkgerrors.IngestionFailed(pkgerrors.StagePersist, err)
	}
	if item != nil {
		return true, nil
	}
	texts, err := s.index.FilterByMetadata(ctx, string(job.kind), map[string]any{vectorindex.MetaContentID: job.contentID})
	if err != nil {
		return false, pkgerrors.IngestionFailed(pkgerrors.StageIndex, err)
	}
	return len(texts) > 0, nil
}

// compensate removes vector rows written for a content id whose relational
// row could not be stored. It outlives request cancellation.
func (s *groundingService) compensate(ctx context.Context, job ingestJob) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	err := s.index.Delete(cctx, string(job.kind), map[string]any{vectorindex.MetaContentID: job.contentID})
	if err != nil {
		s.log.Error("Compensating vector delete failed", "content_id", job.contentID, "error", err)
		return
	}
	s.log.Warn("Removed vector rows after failed ingestion", "content_id", job.contentID)
}

// stage times fn, records it on a child span and tags a failure with the
// stage name unless fn already did.
func (s *groundingService) stage(ctx context.Context, kind types.SourceKind, stage string, fn func(ctx context.Context) error) error {
	ctx, span := observability.Tracer().Start(ctx, "ingest."+stage)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	observability.Current().ObserveIngestStage(string(kind), stage, status, time.Since(start))
	if err == nil {
		return nil
	}
	var failed *pkgerrors.IngestionFailedError
	if errors.As(err, &failed) {
		return err
	}
	s.log.Warn("Ingestion stage failed", "source", string(kind), "stage", stage, "error", err)
	return pkgerrors.IngestionFailed(stage, err)
}

// answer produces the response text for a finished ingestion: a summary, or
// a query answer when a query was supplied.
func (s *groundingService) answer(ctx context.Context, res *IngestResult, query string) (*IngestResult, error) {
	var (
		text string
		err  error
	)
	if strings.TrimSpace(query) == "" {
		text, err = s.Summarize(ctx, res.ContentID)
	} else {
		text, err = s.Query(ctx, query, res.ContentID, ingestQueryTopK)
	}
	if err != nil {
		return nil, err
	}
	res.Summary = text
	return res, nil
}
