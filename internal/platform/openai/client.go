// Package openai talks to OpenAI-compatible HTTP APIs: chat completions
// (Groq by default), embeddings (Ollama or OpenAI) and Whisper transcription.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JKristilere/smart-summarizer/internal/observability"
	"github.com/JKristilere/smart-summarizer/internal/pkg/ctxutil"
	pkgerrors "github.com/JKristilere/smart-summarizer/internal/pkg/errors"
	"github.com/JKristilere/smart-summarizer/internal/pkg/httpx"
	"github.com/JKristilere/smart-summarizer/internal/platform/logger"
)

const maxResponseBytes = 16 << 20

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// Temperature is omitted from requests when nil.
	Temperature *float64
	MaxTokens   int
	// MaxRetries applies to chat calls. Zero means a single attempt.
	MaxRetries int

	EmbedBaseURL    string
	EmbedAPIKey     string
	EmbedModel      string
	EmbedMaxRetries int

	TranscribeModel string

	Timeout time.Duration
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client is the model gateway used by the rest of the service.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	// Stream calls onDelta for each text fragment and returns the text
	// produced so far, also when it fails. An error from onDelta stops the
	// stream and is returned.
	Stream(ctx context.Context, messages []Message, onDelta func(delta string) error) (string, error)
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	Transcribe(ctx context.Context, filename string, audio []byte) (string, error)
}

type endpoint struct {
	baseURL    string
	apiKey     string
	maxRetries int
}

type client struct {
	log        *logger.Logger
	cfg        Config
	chat       endpoint
	embed      endpoint
	httpClient *http.Client
	// streamClient has no overall timeout; streams end with ctx.
	streamClient *http.Client
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("%w: missing LLM_BASE_URL", pkgerrors.ErrConfiguration)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: missing LLM_API_KEY", pkgerrors.ErrConfiguration)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("%w: missing LLM_MODEL", pkgerrors.ErrConfiguration)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	embedBase := strings.TrimSpace(cfg.EmbedBaseURL)
	if embedBase == "" {
		embedBase = cfg.BaseURL
	}
	c := &client{
		log: log.With("service", "OpenAICompatClient", "model", cfg.Model),
		cfg: cfg,
		chat: endpoint{
			baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
			apiKey:     cfg.APIKey,
			maxRetries: max(cfg.MaxRetries, 0),
		},
		embed: endpoint{
			baseURL:    strings.TrimRight(embedBase, "/"),
			apiKey:     cfg.EmbedAPIKey,
			maxRetries: max(cfg.EmbedMaxRetries, 0),
		},
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
	}
	return c, nil
}

// HTTPError is a non-2xx answer from the provider.
type HTTPError struct {
	StatusCode int
	Body       string
	resp       *http.Response
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// classify maps a transport or provider failure onto the LLM error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pkgerrors.ErrLLMRateLimited) || errors.Is(err, pkgerrors.ErrLLMUnavailable) {
		return err
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		return pkgerrors.Wrap(pkgerrors.ErrLLMRateLimited, err)
	}
	return pkgerrors.Wrap(pkgerrors.ErrLLMUnavailable, err)
}

func (c *client) newRequest(ctx context.Context, ep endpoint, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, ep.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if ep.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+ep.apiKey)
	}
	req.Header.Set("Content-Type", contentType)
	return req, nil
}

func (c *client) doOnce(ctx context.Context, ep endpoint, method, path string, payload []byte, contentType string) ([]byte, error) {
	req, err := c.newRequest(ctx, ep, method, path, bytes.NewReader(payload), contentType)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return raw, &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 512), resp: resp}
	}
	return raw, nil
}

// do sends payload and decodes the JSON answer into out, retrying retryable
// failures up to ep.maxRetries times with jittered backoff.
func (c *client) do(ctx context.Context, ep endpoint, path string, payload []byte, contentType string, out any) error {
	backoff := time.Second
	start := time.Now()
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := c.doOnce(ctx, ep, http.MethodPost, path, payload, contentType)
		if err == nil {
			in, outTok := extractUsage(raw)
			observability.Current().ObserveLLMRequest(c.modelFor(path), path, "200", time.Since(start), in, outTok)
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w", uErr)
			}
			return nil
		}

		if attempt >= ep.maxRetries || !httpx.IsRetryableError(err) {
			observability.Current().ObserveLLMRequest(c.modelFor(path), path, statusOf(err), time.Since(start), 0, 0)
			return err
		}

		var resp *http.Response
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			resp = httpErr.resp
		}
		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("OpenAI-compatible request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", ep.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if err := httpx.Sleep(ctx, sleepFor); err != nil {
			return err
		}
		backoff *= 2
	}
}

func (c *client) doJSON(ctx context.Context, ep endpoint, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("openai encode error: %w", err)
	}
	return c.do(ctx, ep, path, payload, "application/json", out)
}

func (c *client) modelFor(path string) string {
	switch {
	case strings.HasSuffix(path, "/embeddings"):
		return c.cfg.EmbedModel
	case strings.Contains(path, "/audio/"):
		return c.cfg.TranscribeModel
	default:
		return c.cfg.Model
	}
}

func extractUsage(raw []byte) (int, int) {
	var env struct {
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return 0, 0
	}
	return env.Usage.PromptTokens, env.Usage.CompletionTokens
}

func statusOf(err error) string {
	var sc httpx.HTTPStatusCoder
	if errors.As(err, &sc) {
		return fmt.Sprintf("%d", sc.HTTPStatusCode())
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
