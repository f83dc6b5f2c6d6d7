package gcp

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JKristilere/smart-summarizer/internal/pkg/ctxutil"
	"github.com/JKristilere/smart-summarizer/internal/platform/logger"
)

// maxInlineAudioBytes is the inline content limit of LongRunningRecognize.
const maxInlineAudioBytes = 10 << 20

type SpeechConfig struct {
	LanguageCode string
	Model        string
	Credentials  string
	MaxRetries   int
}

type recognizer interface {
	LongRunningRecognize(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error)
	Close() error
}

type speechClient struct {
	c *speech.Client
}

func (s speechClient) LongRunningRecognize(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
	op, err := s.c.LongRunningRecognize(ctx, req)
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}

func (s speechClient) Close() error { return s.c.Close() }

// Speech transcribes uploads with Google Cloud Speech-to-Text. Audio over the
// inline limit is staged to a bucket first when a Stager is configured.
type Speech struct {
	log        *logger.Logger
	rec        recognizer
	stager     Stager
	cfg        SpeechConfig
	maxRetries int
}

func NewSpeech(ctx context.Context, log *logger.Logger, cfg SpeechConfig, stager Stager) (*Speech, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	c, err := speech.NewClient(ctxutil.Default(ctx), ClientOptions(cfg.Credentials)...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return newSpeech(log, speechClient{c: c}, cfg, stager), nil
}

func newSpeech(log *logger.Logger, rec recognizer, cfg SpeechConfig, stager Stager) *Speech {
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return &Speech{
		log:        log.With("service", "gcp.Speech"),
		rec:        rec,
		stager:     stager,
		cfg:        cfg,
		maxRetries: retries,
	}
}

func (s *Speech) Close() error {
	if s == nil || s.rec == nil {
		return nil
	}
	if s.stager != nil {
		_ = s.stager.Close()
	}
	return s.rec.Close()
}

// Transcribe returns the concatenated top alternative of every result.
func (s *Speech) Transcribe(ctx context.Context, filename, mimeType string, audio []byte) (string, error) {
	ctx = ctxutil.Default(ctx)
	if len(audio) == 0 {
		return "", fmt.Errorf("transcribe: empty audio")
	}

	req := &speechpb.LongRunningRecognizeRequest{
		Config: s.recognitionConfig(filename, mimeType),
	}

	timeout := 3 * time.Minute
	if len(audio) > maxInlineAudioBytes {
		if s.stager == nil {
			return "", fmt.Errorf("audio is %d bytes, over the inline limit, and no staging bucket is configured", len(audio))
		}
		key := "audio/" + uuid.NewString() + strings.ToLower(filepath.Ext(filename))
		uri, err := s.stager.Stage(ctx, key, bytes.NewReader(audio), mimeType)
		if err != nil {
			return "", err
		}
		defer func() {
			if rmErr := s.stager.Remove(context.WithoutCancel(ctx), key); rmErr != nil {
				s.log.Warn("Failed to remove staged audio", "key", key, "error", rmErr)
			}
		}()
		req.Audio = &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Uri{Uri: uri}}
		timeout = 30 * time.Minute
	} else {
		req.Audio = &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := s.retry(ctx, func() (*speechpb.LongRunningRecognizeResponse, error) {
		return s.rec.LongRunningRecognize(ctx, req)
	})
	if err != nil {
		return "", fmt.Errorf("speech longrunningrecognize: %w", err)
	}
	return transcriptText(resp), nil
}

func (s *Speech) recognitionConfig(filename, mimeType string) *speechpb.RecognitionConfig {
	return &speechpb.RecognitionConfig{
		LanguageCode:               s.cfg.LanguageCode,
		Model:                      s.cfg.Model,
		EnableAutomaticPunctuation: true,
		Encoding:                   inferSpeechEncoding(mimeType, filename),
	}
}

func inferSpeechEncoding(mimeType, filename string) speechpb.RecognitionConfig_AudioEncoding {
	m := strings.ToLower(strings.TrimSpace(mimeType))
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case strings.Contains(m, "wav") || ext == ".wav":
		return speechpb.RecognitionConfig_LINEAR16
	case strings.Contains(m, "flac") || ext == ".flac":
		return speechpb.RecognitionConfig_FLAC
	case strings.Contains(m, "mp3") || strings.Contains(m, "mpeg") || ext == ".mp3":
		return speechpb.RecognitionConfig_MP3
	case strings.Contains(m, "ogg") || ext == ".ogg" || ext == ".opus":
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

func transcriptText(resp *speechpb.LongRunningRecognizeResponse) string {
	if resp == nil {
		return ""
	}
	var full strings.Builder
	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		t := collapseWhitespace(r.Alternatives[0].Transcript)
		if t == "" {
			continue
		}
		if full.Len() > 0 {
			full.WriteString(" ")
		}
		full.WriteString(t)
	}
	return full.String()
}

func (s *Speech) retry(ctx context.Context, fn func() (*speechpb.LongRunningRecognizeResponse, error)) (*speechpb.LongRunningRecognizeResponse, error) {
	backoff := 750 * time.Millisecond
	var last error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		last = err

		code := status.Code(err)
		if code != codes.Unavailable && code != codes.ResourceExhausted && code != codes.DeadlineExceeded {
			return nil, err
		}
		if attempt == s.maxRetries {
			break
		}
		s.log.Warn("Speech request retrying", "attempt", attempt+1, "code", code.String())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}
	}
	return nil, last
}
