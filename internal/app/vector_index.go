package app

import (
	"context"
	"time"

	"github.com/JKristilere/smart-summarizer/internal/observability"
	"github.com/JKristilere/smart-summarizer/internal/platform/logger"
	"github.com/JKristilere/smart-summarizer/internal/platform/qdrant"
	"github.com/JKristilere/smart-summarizer/internal/platform/vectorindex"
)

// wireVectorIndex builds the configured backend and wraps it with metrics.
func wireVectorIndex(ctx context.Context, log *logger.Logger, cfg Config) (vectorindex.Index, error) {
	switch cfg.VectorBackend {
	case VectorBackendMemory:
		log.Warn("Using in-memory vector index; chunks are lost on restart")
		return instrumentIndex(VectorBackendMemory, vectorindex.NewMemory(log, cfg.EmbedDim)), nil
	default:
		idx, err := qdrant.NewIndex(ctx, log, qdrant.Config{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
			VectorDim:  cfg.EmbedDim,
			Distance:   cfg.QdrantDistance,
			AutoCreate: cfg.QdrantAutoCreate,
		})
		if err != nil {
			return nil, err
		}
		return instrumentIndex(VectorBackendQdrant, idx), nil
	}
}

type instrumentedIndex struct {
	backend string
	inner   vectorindex.Index
	metrics *observability.Metrics
}

func instrumentIndex(backend string, inner vectorindex.Index) vectorindex.Index {
	if inner == nil {
		return nil
	}
	return &instrumentedIndex{
		backend: backend,
		inner:   inner,
		metrics: observability.Current(),
	}
}

func (s *instrumentedIndex) Add(ctx context.Context, namespace, contentID string, texts []string, embeddings [][]float32, extra map[string]any) (int, error) {
	start := time.Now()
	n, err := s.inner.Add(ctx, namespace, contentID, texts, embeddings, extra)
	s.observe("add", err, time.Since(start))
	return n, err
}

func (s *instrumentedIndex) SimilaritySearch(ctx context.Context, namespace string, embedding []float32, topK int) ([]string, error) {
	start := time.Now()
	out, err := s.inner.SimilaritySearch(ctx, namespace, embedding, topK)
	s.observe("similarity_search", err, time.Since(start))
	return out, err
}

func (s *instrumentedIndex) FilterByMetadata(ctx context.Context, namespace string, predicate map[string]any) ([]string, error) {
	start := time.Now()
	out, err := s.inner.FilterByMetadata(ctx, namespace, predicate)
	s.observe("filter_by_metadata", err, time.Since(start))
	return out, err
}

func (s *instrumentedIndex) Delete(ctx context.Context, namespace string, predicate map[string]any) error {
	start := time.Now()
	err := s.inner.Delete(ctx, namespace, predicate)
	s.observe("delete", err, time.Since(start))
	return err
}

func (s *instrumentedIndex) observe(operation string, err error, dur time.Duration) {
	if s == nil || s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.ObserveVectorOperation(s.backend, operation, status, dur)
}
