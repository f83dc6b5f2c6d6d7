package ingestion

import (
	"context"
	"strings"
)

// Transcriber turns an uploaded recording into plain text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename, mimeType string, audio []byte) (string, error)
}

// WhisperModel is the transcription half of the OpenAI-compatible gateway.
type WhisperModel interface {
	Transcribe(ctx context.Context, filename string, audio []byte) (string, error)
}

type whisperTranscriber struct {
	model WhisperModel
}

// NewWhisperTranscriber adapts an OpenAI-compatible /audio/transcriptions
// client. The MIME type is not needed; the provider sniffs the container.
func NewWhisperTranscriber(model WhisperModel) Transcriber {
	return whisperTranscriber{model: model}
}

func (w whisperTranscriber) Transcribe(ctx context.Context, filename, _ string, audio []byte) (string, error) {
	text, err := w.model.Transcribe(ctx, filename, audio)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// AllowedAudioTypes is the upload MIME allow-list.
var AllowedAudioTypes = []string{"video/mp4", "audio/mpeg", "audio/wav", "audio/mp3", "audio/x-m4a"}

// IsAllowedAudioType reports whether contentType (parameters ignored) is on
// the allow-list.
func IsAllowedAudioType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	for _, allowed := range AllowedAudioTypes {
		if ct == allowed {
			return true
		}
	}
	return false
}
