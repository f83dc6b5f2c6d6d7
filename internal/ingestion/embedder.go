package ingestion

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/JKristilere/smart-summarizer/internal/observability"
	pkgerrors "github.com/JKristilere/smart-summarizer/internal/pkg/errors"
	"github.com/JKristilere/smart-summarizer/internal/platform/logger"
)

const (
	DefaultEmbedBatchSize   = 64
	DefaultEmbedConcurrency = 4
)

// EmbeddingModel is the external model called once per batch.
type EmbeddingModel interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// BatchEmbedder fans batches out over a bounded worker pool shared by all
// callers.
type BatchEmbedder struct {
	log       *logger.Logger
	model     EmbeddingModel
	batchSize int
	pool      *ants.Pool
}

func NewBatchEmbedder(log *logger.Logger, model EmbeddingModel, batchSize, concurrency int) (*BatchEmbedder, error) {
	if model == nil {
		return nil, fmt.Errorf("embedding model required")
	}
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	if concurrency <= 0 {
		concurrency = DefaultEmbedConcurrency
	}
	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, fmt.Errorf("embed pool: %w", err)
	}
	return &BatchEmbedder{
		log:       log.With("service", "BatchEmbedder"),
		model:     model,
		batchSize: batchSize,
		pool:      pool,
	}, nil
}

func (e *BatchEmbedder) Close() {
	if e != nil && e.pool != nil {
		e.pool.Release()
	}
}

// Embed returns exactly one vector per text, in input order. Any batch
// failure cancels the remaining batches and surfaces as ErrEmbeddingFailure.
func (e *BatchEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([][]float32, len(texts))
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		lo, hi := start, end
		wg.Add(1)
		submitErr := e.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			vecs, err := e.model.Embed(ctx, texts[lo:hi])
			if err != nil {
				observability.Current().IncEmbedBatch("error")
				fail(err)
				return
			}
			if len(vecs) != hi-lo {
				observability.Current().IncEmbedBatch("error")
				fail(fmt.Errorf("model returned %d vectors for %d inputs", len(vecs), hi-lo))
				return
			}
			observability.Current().IncEmbedBatch("ok")
			copy(out[lo:hi], vecs)
		})
		if submitErr != nil {
			wg.Done()
			fail(submitErr)
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		e.log.Warn("Embedding failed", "texts", len(texts), "error", firstErr)
		return nil, pkgerrors.Wrap(pkgerrors.ErrEmbeddingFailure, firstErr)
	}
	if err := parent.Err(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrEmbeddingFailure, err)
	}
	return out, nil
}
