package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/JKristilere/smart-summarizer/internal/pkg/ctxutil"
	pkgerrors "github.com/JKristilere/smart-summarizer/internal/pkg/errors"
	"github.com/JKristilere/smart-summarizer/internal/platform/logger"
	"github.com/JKristilere/smart-summarizer/internal/platform/vectorindex"
)

const (
	payloadNamespaceKey = "namespace"
	maxErrorBodyBytes   = 1024
	maxResponseBytes    = 32 << 20
	scrollPageSize      = 256
)

type index struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type qdrantPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

type qdrantScrollResult struct {
	Points         []qdrantPoint   `json:"points"`
	NextPageOffset json.RawMessage `json:"next_page_offset"`
}

// NewIndex returns a vectorindex.Index backed by one Qdrant collection.
// Namespaces are stored as a payload field. The collection is checked (and
// created when cfg.AutoCreate is set) before returning.
func NewIndex(ctx context.Context, log *logger.Logger, cfg Config) (vectorindex.Index, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &index{
		log:     log.With("service", "QdrantVectorIndex"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	s.log.Info(
		"Qdrant vector index selected",
		"url", s.baseURL,
		"collection", cfg.Collection,
		"vector_dim", cfg.VectorDim,
	)
	return s, nil
}

func (s *index) Add(ctx context.Context, namespace, contentID string, texts []string, embeddings [][]float32, extra map[string]any) (int, error) {
	const op = "upsert"
	chunks, err := vectorindex.BuildChunks(contentID, texts, embeddings, extra, s.cfg.VectorDim)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	points := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		payload := make(map[string]any, len(c.Metadata)+2)
		for k, v := range c.Metadata {
			payload[k] = v
		}
		payload[vectorindex.MetaText] = c.Text
		payload[payloadNamespaceKey] = strings.TrimSpace(namespace)
		points = append(points, map[string]any{
			"id":      c.ID,
			"vector":  c.Vector,
			"payload": payload,
		})
	}

	req := map[string]any{"points": points}
	if err := s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/points?wait=true"), req, nil); err != nil {
		return 0, err
	}
	return len(points), nil
}

func (s *index) SimilaritySearch(ctx context.Context, namespace string, embedding []float32, topK int) ([]string, error) {
	const op = "search"
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", pkgerrors.ErrDimensionMismatch)
	}
	if len(embedding) != s.cfg.VectorDim {
		return nil, fmt.Errorf("%w: query width %d, collection expects %d", pkgerrors.ErrDimensionMismatch, len(embedding), s.cfg.VectorDim)
	}
	if topK <= 0 {
		topK = 3
	}
	filter, err := buildFilter(namespace, nil)
	if err != nil {
		return nil, err
	}

	req := map[string]any{
		"vector":       embedding,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  false,
	}
	if filter != nil {
		req["filter"] = filter
	}
	var hits []qdrantPoint
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/search"), req, &hits); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		if text, ok := h.Payload[vectorindex.MetaText].(string); ok {
			out = append(out, text)
		}
	}
	return out, nil
}

func (s *index) FilterByMetadata(ctx context.Context, namespace string, predicate map[string]any) ([]string, error) {
	const op = "scroll"
	filter, err := buildFilter(namespace, predicate)
	if err != nil {
		return nil, err
	}

	var chunks []vectorindex.Chunk
	var offset json.RawMessage
	for {
		req := map[string]any{
			"limit":        scrollPageSize,
			"with_payload": true,
			"with_vector":  false,
		}
		if filter != nil {
			req["filter"] = filter
		}
		if len(offset) > 0 {
			req["offset"] = offset
		}
		var page qdrantScrollResult
		if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/scroll"), req, &page); err != nil {
			return nil, err
		}
		for _, p := range page.Points {
			text, _ := p.Payload[vectorindex.MetaText].(string)
			chunks = append(chunks, vectorindex.Chunk{Text: text, Metadata: p.Payload})
		}
		next := strings.TrimSpace(string(page.NextPageOffset))
		if next == "" || next == "null" || len(page.Points) == 0 {
			break
		}
		offset = page.NextPageOffset
	}

	vectorindex.SortByChunkIndex(chunks)
	return vectorindex.Texts(chunks), nil
}

func (s *index) Delete(ctx context.Context, namespace string, predicate map[string]any) error {
	const op = "delete"
	if len(predicate) == 0 {
		return fmt.Errorf("%w: delete requires a predicate", pkgerrors.ErrInvalidArgument)
	}
	filter, err := buildFilter(namespace, predicate)
	if err != nil {
		return err
	}
	req := map[string]any{"filter": filter}
	return s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/delete?wait=true"), req, nil)
}

func (s *index) ensureCollection(ctx context.Context) error {
	const op = "bootstrap_verify"

	var info struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	err := s.doJSON(ctx, op, http.MethodGet, s.collectionPath(""), nil, &info)
	var opErrTyped *OperationError
	if errors.As(err, &opErrTyped) && opErrTyped.notFound() {
		if !s.cfg.AutoCreate {
			return &OperationError{
				Code:       OperationErrorMissingCollection,
				Operation:  op,
				StatusCode: http.StatusNotFound,
				Message:    fmt.Sprintf("collection %q does not exist and QDRANT_AUTO_CREATE is off", s.cfg.Collection),
			}
		}
		return s.createCollection(ctx)
	}
	if err != nil {
		return err
	}

	size := info.Config.Params.Vectors.Size
	if size != 0 && size != s.cfg.VectorDim {
		return &OperationError{
			Code:      OperationErrorValidation,
			Operation: op,
			Message: fmt.Sprintf(
				"collection %q vector size mismatch: expected=%d actual=%d",
				s.cfg.Collection,
				s.cfg.VectorDim,
				size,
			),
		}
	}
	want, _ := normalizeDistance(s.cfg.Distance)
	if got := info.Config.Params.Vectors.Distance; got != "" && !strings.EqualFold(got, want) {
		return &OperationError{
			Code:      OperationErrorValidation,
			Operation: op,
			Message: fmt.Sprintf(
				"collection %q distance mismatch: expected=%s actual=%s",
				s.cfg.Collection,
				want,
				got,
			),
		}
	}
	return nil
}

func (s *index) createCollection(ctx context.Context) error {
	const op = "create_collection"
	distance, _ := normalizeDistance(s.cfg.Distance)
	req := map[string]any{
		"vectors": map[string]any{
			"size":     s.cfg.VectorDim,
			"distance": distance,
		},
	}
	if err := s.doJSON(ctx, op, http.MethodPut, s.collectionPath(""), req, nil); err != nil {
		return err
	}
	for _, field := range []string{vectorindex.MetaContentID, payloadNamespaceKey} {
		idx := map[string]any{"field_name": field, "field_schema": "keyword"}
		if err := s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/index?wait=true"), idx, nil); err != nil {
			return err
		}
	}
	s.log.Info("Qdrant collection created", "collection", s.cfg.Collection, "distance", distance)
	return nil
}

func (s *index) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}

	if out == nil || len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

// parseEnvelopeStatus returns "" for an ok status and a message otherwise.
func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}
	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil && strings.TrimSpace(statusObject.Error) != "" {
		return strings.TrimSpace(statusObject.Error)
	}
	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func (s *index) collectionPath(suffix string) string {
	path := "/collections/" + s.cfg.Collection
	if strings.TrimSpace(suffix) == "" {
		return path
	}
	return path + suffix
}
