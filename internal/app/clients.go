package app

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JKristilere/smart-summarizer/internal/clients/gcp"
	"github.com/JKristilere/smart-summarizer/internal/clients/redis"
	"github.com/JKristilere/smart-summarizer/internal/ingestion"
	"github.com/JKristilere/smart-summarizer/internal/platform/logger"
	"github.com/JKristilere/smart-summarizer/internal/platform/openai"
	"github.com/JKristilere/smart-summarizer/internal/platform/vectorindex"
	"github.com/JKristilere/smart-summarizer/internal/platform/youtube"
)

type Clients struct {
	LLM         openai.Client
	Embedder    *ingestion.BatchEmbedder
	Index       vectorindex.Index
	YouTube     *youtube.Client
	Transcriber ingestion.Transcriber
	Redis       *goredis.Client
	Locker      redis.Locker

	speech *gcp.Speech
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	llm, err := openai.NewClient(log, openai.Config{
		BaseURL:         cfg.LLMBaseURL,
		APIKey:          cfg.LLMAPIKey,
		Model:           cfg.LLMModel,
		Temperature:     cfg.LLMTemperature,
		MaxTokens:       cfg.LLMMaxTokens,
		MaxRetries:      cfg.LLMMaxRetries,
		EmbedBaseURL:    cfg.EmbedBaseURL,
		EmbedAPIKey:     cfg.EmbedAPIKey,
		EmbedModel:      cfg.EmbedModel,
		EmbedMaxRetries: cfg.EmbedMaxRetries,
		TranscribeModel: cfg.WhisperModel,
		Timeout:         cfg.LLMTimeout,
	})
	if err != nil {
		return Clients{}, fmt.Errorf("init llm client: %w", err)
	}
	out.LLM = llm

	embedder, err := ingestion.NewBatchEmbedder(log, llm, cfg.EmbedBatchSize, cfg.EmbedConcurrency)
	if err != nil {
		return Clients{}, fmt.Errorf("init embedder: %w", err)
	}
	out.Embedder = embedder

	index, err := wireVectorIndex(ctx, log, cfg)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init vector index: %w", err)
	}
	out.Index = index

	out.YouTube = youtube.NewClient(log, youtube.Config{
		Languages: cfg.YouTubeLanguages,
		Window:    cfg.TranscriptWindow,
	})

	switch cfg.TranscribeProvider {
	case TranscribeGCP:
		stager, err := gcp.NewStager(ctx, log, gcp.StagingConfig{
			Bucket:      cfg.GCSAudioBucket,
			Prefix:      "uploads",
			Credentials: cfg.GCPCredentials,
		})
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init gcs stager: %w", err)
		}
		speech, err := gcp.NewSpeech(ctx, log, gcp.SpeechConfig{
			LanguageCode: cfg.SpeechLanguage,
			Credentials:  cfg.GCPCredentials,
		}, stager)
		if err != nil {
			_ = stager.Close()
			out.Close()
			return Clients{}, fmt.Errorf("init speech client: %w", err)
		}
		out.speech = speech
		out.Transcriber = speech
	default:
		out.Transcriber = ingestion.NewWhisperTranscriber(llm)
	}

	// Redis is optional; without it the ingestion lock is process-local.
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		rdb, err := redis.NewClient(ctx, log, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		out.Redis = rdb
		out.Locker = redis.NewLocker(log, rdb)
	} else {
		log.Warn("REDIS_ADDR not set; using in-process ingestion lock")
		out.Locker = redis.NewLocalLocker()
	}

	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Embedder != nil {
		c.Embedder.Close()
	}
	if c.speech != nil {
		_ = c.speech.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
