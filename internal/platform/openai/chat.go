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
)

const chatCompletionsPath = "/v1/chat/completions"

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error json.RawMessage `json:"error"`
}

func (c *client) chatRequest(messages []Message, stream bool) chatRequest {
	return chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Stream:      stream,
	}
}

func (c *client) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("complete: no messages")
	}
	var resp chatResponse
	if err := c.doJSON(ctx, c.chat, chatCompletionsPath, c.chatRequest(messages, false), &resp); err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", classify(fmt.Errorf("chat completion returned no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *client) Stream(ctx context.Context, messages []Message, onDelta func(delta string) error) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("stream: no messages")
	}
	start := time.Now()
	payload, err := json.Marshal(c.chatRequest(messages, true))
	if err != nil {
		return "", fmt.Errorf("openai encode error: %w", err)
	}
	req, err := c.newRequest(ctx, c.chat, http.MethodPost, chatCompletionsPath, bytes.NewReader(payload), "application/json")
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		observability.Current().ObserveLLMRequest(c.cfg.Model, chatCompletionsPath+"#stream", statusOf(err), time.Since(start), 0, 0)
		return "", classify(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 512), resp: resp}
		observability.Current().ObserveLLMRequest(c.cfg.Model, chatCompletionsPath+"#stream", statusOf(httpErr), time.Since(start), 0, 0)
		return "", classify(httpErr)
	}

	var full strings.Builder
	var callbackErr error
	err = streamSSE(resp.Body, func(_ string, data string) error {
		data = strings.TrimSpace(data)
		if data == "" {
			return nil
		}
		if data == "[DONE]" {
			return errStreamDone
		}
		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil
		}
		if len(chunk.Error) > 0 && string(chunk.Error) != "null" {
			return fmt.Errorf("openai stream error: %s", string(chunk.Error))
		}
		for _, choice := range chunk.Choices {
			d := choice.Delta.Content
			if d == "" {
				continue
			}
			full.WriteString(d)
			if onDelta != nil {
				if cbErr := onDelta(d); cbErr != nil {
					callbackErr = cbErr
					return cbErr
				}
			}
		}
		return nil
	})
	if errors.Is(err, errStreamDone) {
		err = nil
	}
	if err == nil {
		err = ctx.Err()
	}

	status := "200"
	if err != nil {
		status = statusOf(err)
	}
	observability.Current().ObserveLLMRequest(c.cfg.Model, chatCompletionsPath+"#stream", status, time.Since(start), 0, 0)

	switch {
	case err == nil:
		return full.String(), nil
	case callbackErr != nil && errors.Is(err, callbackErr):
		return full.String(), err
	case ctx.Err() != nil:
		return full.String(), ctx.Err()
	default:
		return full.String(), classify(err)
	}
}
