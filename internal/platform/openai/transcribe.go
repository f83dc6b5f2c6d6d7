package openai

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
)

const transcriptionsPath = "/v1/audio/transcriptions"

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe sends audio to the Whisper-compatible transcription endpoint
// and returns the plain transcript.
func (c *client) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("transcribe: empty audio")
	}
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == "/" {
		name = "audio"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	_ = mw.WriteField("model", c.cfg.TranscribeModel)
	_ = mw.WriteField("response_format", "json")
	if err := mw.Close(); err != nil {
		return "", err
	}

	var resp transcriptionResponse
	if err := c.do(ctx, c.chat, transcriptionsPath, body.Bytes(), mw.FormDataContentType(), &resp); err != nil {
		return "", classify(err)
	}
	return strings.TrimSpace(resp.Text), nil
}
