package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	pkgerrors "github.com/JKristilere/smart-summarizer/internal/pkg/errors"
	"github.com/JKristilere/smart-summarizer/internal/platform/logger"
)

// Memory is a brute-force cosine index kept in process memory.
type Memory struct {
	log *logger.Logger
	dim int

	mu     sync.RWMutex
	chunks map[string][]Chunk
}

func NewMemory(log *logger.Logger, dim int) *Memory {
	return &Memory{
		log:    log.With("service", "MemoryVectorIndex"),
		dim:    dim,
		chunks: map[string][]Chunk{},
	}
}

func (m *Memory) Add(ctx context.Context, namespace, contentID string, texts []string, embeddings [][]float32, extra map[string]any) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	built, err := BuildChunks(contentID, texts, embeddings, extra, m.dim)
	if err != nil {
		return 0, err
	}
	ns := strings.TrimSpace(namespace)
	m.mu.Lock()
	m.chunks[ns] = append(m.chunks[ns], built...)
	m.mu.Unlock()
	return len(built), nil
}

func (m *Memory) SimilaritySearch(ctx context.Context, namespace string, embedding []float32, topK int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", pkgerrors.ErrDimensionMismatch)
	}
	if m.dim > 0 && len(embedding) != m.dim {
		return nil, fmt.Errorf("%w: query width %d, index expects %d", pkgerrors.ErrDimensionMismatch, len(embedding), m.dim)
	}
	if topK <= 0 {
		topK = 3
	}

	type scored struct {
		text  string
		score float64
	}
	var hits []scored
	m.mu.RLock()
	for _, c := range m.scan(namespace) {
		hits = append(hits, scored{text: c.Text, score: cosine(c.Vector, embedding)})
	}
	m.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.text)
	}
	return out, nil
}

func (m *Memory) FilterByMetadata(ctx context.Context, namespace string, predicate map[string]any) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var matched []Chunk
	m.mu.RLock()
	for _, c := range m.scan(namespace) {
		if Matches(c.Metadata, predicate) {
			matched = append(matched, c)
		}
	}
	m.mu.RUnlock()
	SortByChunkIndex(matched)
	return Texts(matched), nil
}

func (m *Memory) Delete(ctx context.Context, namespace string, predicate map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(predicate) == 0 {
		return fmt.Errorf("%w: delete requires a predicate", pkgerrors.ErrInvalidArgument)
	}
	namespace = strings.TrimSpace(namespace)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for ns, list := range m.chunks {
		if namespace != "" && ns != namespace {
			continue
		}
		kept := list[:0]
		for _, c := range list {
			if Matches(c.Metadata, predicate) {
				removed++
				continue
			}
			kept = append(kept, c)
		}
		m.chunks[ns] = kept
	}
	if removed > 0 {
		m.log.Debug("Chunks deleted", "namespace", namespace, "count", removed)
	}
	return nil
}

// scan must be called with mu held.
func (m *Memory) scan(namespace string) []Chunk {
	ns := strings.TrimSpace(namespace)
	if ns != "" {
		return m.chunks[ns]
	}
	keys := make([]string, 0, len(m.chunks))
	for k := range m.chunks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []Chunk
	for _, k := range keys {
		out = append(out, m.chunks[k]...)
	}
	return out
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
