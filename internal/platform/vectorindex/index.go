// Package vectorindex defines the chunk store used for retrieval and an
// in-memory implementation of it.
package vectorindex

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/JKristilere/smart-summarizer/internal/pkg/errors"
)

// Metadata keys written on every chunk.
const (
	MetaContentID     = "content_id"
	MetaChunkIndex    = "chunk_index"
	MetaContentLength = "content_length"
	MetaText          = "text"
	// MetaVideoID and MetaFileID mirror content_id for older readers that
	// filter by the source-specific key.
	MetaVideoID = "video_id"
	MetaFileID  = "file_id"
)

// Index stores chunk texts with their embeddings, partitioned by namespace.
// An empty namespace on reads means every namespace.
type Index interface {
	// Add writes one chunk per text with fresh ids and returns how many were
	// committed. It is not idempotent.
	Add(ctx context.Context, namespace, contentID string, texts []string, embeddings [][]float32, extra map[string]any) (int, error)
	SimilaritySearch(ctx context.Context, namespace string, embedding []float32, topK int) ([]string, error)
	// FilterByMetadata returns texts of chunks whose metadata equals every
	// key of predicate, ordered by chunk_index. No match is an empty slice.
	FilterByMetadata(ctx context.Context, namespace string, predicate map[string]any) ([]string, error)
	// Delete removes every matching chunk. Nothing matching is not an error.
	Delete(ctx context.Context, namespace string, predicate map[string]any) error
}

type Chunk struct {
	ID       string
	Text     string
	Vector   []float32
	Metadata map[string]any
}

// BuildChunks validates an Add call and lays out the chunk records. dim <= 0
// skips the vector width check.
func BuildChunks(contentID string, texts []string, embeddings [][]float32, extra map[string]any, dim int) ([]Chunk, error) {
	if len(texts) != len(embeddings) {
		return nil, fmt.Errorf("%w: %d texts vs %d embeddings", pkgerrors.ErrDimensionMismatch, len(texts), len(embeddings))
	}
	if strings.TrimSpace(contentID) == "" {
		return nil, fmt.Errorf("%w: content id required", pkgerrors.ErrInvalidArgument)
	}
	out := make([]Chunk, 0, len(texts))
	for i, text := range texts {
		vec := embeddings[i]
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at %d", pkgerrors.ErrDimensionMismatch, i)
		}
		if dim > 0 && len(vec) != dim {
			return nil, fmt.Errorf("%w: embedding %d has width %d, index expects %d", pkgerrors.ErrDimensionMismatch, i, len(vec), dim)
		}
		meta := make(map[string]any, len(extra)+3)
		for k, v := range extra {
			meta[k] = v
		}
		meta[MetaContentID] = contentID
		meta[MetaChunkIndex] = i
		meta[MetaContentLength] = len(text)
		out = append(out, Chunk{
			ID:       uuid.NewString(),
			Text:     text,
			Vector:   vec,
			Metadata: meta,
		})
	}
	return out, nil
}

// Matches reports whether every predicate key is present in meta with an
// equal scalar value.
func Matches(meta map[string]any, predicate map[string]any) bool {
	for k, want := range predicate {
		got, ok := meta[k]
		if !ok || !scalarEqual(got, want) {
			return false
		}
	}
	return true
}

func scalarEqual(a, b any) bool {
	if a == b {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// SortByChunkIndex orders chunks by their chunk_index, keeping the original
// order for ties and chunks without one.
func SortByChunkIndex(chunks []Chunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		a, okA := chunkIndex(chunks[i].Metadata)
		b, okB := chunkIndex(chunks[j].Metadata)
		if !okA || !okB {
			return okA && !okB
		}
		return a < b
	})
}

func chunkIndex(meta map[string]any) (int, bool) {
	switch v := meta[MetaChunkIndex].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func Texts(chunks []Chunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Text)
	}
	return out
}
