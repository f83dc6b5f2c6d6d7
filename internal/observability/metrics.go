package observability

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JKristilere/smart-summarizer/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	llmRequests *CounterVec
	llmLatency  *HistogramVec
	llmTokens   *CounterVec

	ingestStage   *HistogramVec
	ingestResults *CounterVec
	embedBatches  *CounterVec
	retrieval     *CounterVec
	chatTurns     *CounterVec
	streamEnds    *CounterVec

	vectorOps *HistogramVec

	redisUp   *Gauge
	redisPing *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED"))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Current returns the process metrics, or nil when metrics are disabled.
// Every method is safe on a nil receiver.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("Metrics enabled")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("ss_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"ss_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		),
		apiInflight: NewGauge("ss_api_inflight_requests", "In-flight API requests."),
		llmRequests: NewCounterVec("ss_llm_requests_total", "LLM requests by model/endpoint/status.", []string{"model", "endpoint", "status"}),
		llmLatency: NewHistogramVec(
			"ss_llm_request_duration_seconds",
			"LLM request latency in seconds by model/endpoint/status.",
			[]string{"model", "endpoint", "status"},
			[]float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		),
		llmTokens: NewCounterVec("ss_llm_tokens_total", "LLM tokens by model/direction.", []string{"model", "direction"}),
		ingestStage: NewHistogramVec(
			"ss_ingest_stage_duration_seconds",
			"Ingestion stage duration in seconds by source/stage/status.",
			[]string{"source", "stage", "status"},
			[]float64{0.05, 0.25, 1, 5, 10, 30, 60, 120, 300},
		),
		ingestResults: NewCounterVec("ss_ingest_total", "Ingestion requests by source/result.", []string{"source", "result"}),
		embedBatches:  NewCounterVec("ss_embed_batches_total", "Embedding batches by status.", []string{"status"}),
		retrieval:     NewCounterVec("ss_retrieval_total", "Retrieval calls by kind/outcome.", []string{"kind", "outcome"}),
		chatTurns:     NewCounterVec("ss_chat_turns_total", "Persisted chat turns by role.", []string{"role"}),
		streamEnds:    NewCounterVec("ss_stream_finalized_total", "Finalized reply streams by outcome.", []string{"outcome"}),
		vectorOps: NewHistogramVec(
			"ss_vector_operation_duration_seconds",
			"Vector index operation latency in seconds by backend/operation/status.",
			[]string{"backend", "operation", "status"},
			[]float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		),
		redisUp:   NewGauge("ss_redis_up", "Redis availability (1=up)."),
		redisPing: NewGauge("ss_redis_ping_seconds", "Redis ping latency in seconds."),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	type writer interface{ WritePrometheus(io.Writer) error }
	for _, c := range []writer{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency, m.llmTokens,
		m.ingestStage, m.ingestResults, m.embedBatches,
		m.retrieval, m.chatTurns, m.streamEnds,
		m.vectorOps,
		m.redisUp, m.redisPing,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m != nil {
		m.apiInflight.Add(1)
	}
}

func (m *Metrics) ApiInflightDec() {
	if m != nil {
		m.apiInflight.Add(-1)
	}
}

func (m *Metrics) ObserveLLMRequest(model, endpoint, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.llmRequests.Inc(model, endpoint, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), model, endpoint, status)
	}
	if inputTokens > 0 {
		m.llmTokens.Add(float64(inputTokens), model, "input")
	}
	if outputTokens > 0 {
		m.llmTokens.Add(float64(outputTokens), model, "output")
	}
}

func (m *Metrics) ObserveIngestStage(source, stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.ingestStage.Observe(dur.Seconds(), source, stage, status)
}

func (m *Metrics) IncIngest(source, result string) {
	if m != nil {
		m.ingestResults.Inc(source, result)
	}
}

func (m *Metrics) IncEmbedBatch(status string) {
	if m != nil {
		m.embedBatches.Inc(status)
	}
}

// IncRetrieval counts a vector read; outcome is "hit" or "empty".
func (m *Metrics) IncRetrieval(kind, outcome string) {
	if m != nil {
		m.retrieval.Inc(kind, outcome)
	}
}

func (m *Metrics) IncChatTurn(role string) {
	if m != nil {
		m.chatTurns.Inc(role)
	}
}

func (m *Metrics) IncStreamFinalized(outcome string) {
	if m != nil {
		m.streamEnds.Inc(outcome)
	}
}

func (m *Metrics) ObserveVectorOperation(backend, operation, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.vectorOps.Observe(dur.Seconds(), backend, operation, status)
}

// StartRedisCollector pings rdb every interval until ctx is done.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *redis.Client, interval time.Duration) {
	if m == nil || rdb == nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
