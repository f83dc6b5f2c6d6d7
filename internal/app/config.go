package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	pkgerrors "github.com/JKristilere/smart-summarizer/internal/pkg/errors"
	"github.com/JKristilere/smart-summarizer/internal/platform/envutil"
	"github.com/JKristilere/smart-summarizer/internal/platform/logger"
)

const (
	VectorBackendQdrant = "qdrant"
	VectorBackendMemory = "memory"

	TranscribeWhisper = "whisper"
	TranscribeGCP     = "gcp"
)

type Config struct {
	Port        string
	LogMode     string
	LogLevel    string
	CORSOrigins string

	DatabaseDriver string
	DatabaseURL    string

	LLMBaseURL     string
	LLMAPIKey      string
	LLMModel       string
	LLMTemperature *float64
	LLMMaxTokens   int
	LLMMaxRetries  int
	LLMTimeout     time.Duration

	EmbedBaseURL     string
	EmbedAPIKey      string
	EmbedModel       string
	EmbedDim         int
	EmbedBatchSize   int
	EmbedConcurrency int
	EmbedMaxRetries  int

	VectorBackend    string
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string
	QdrantDistance   string
	QdrantAutoCreate bool

	TranscribeProvider string
	WhisperModel       string
	GCSAudioBucket     string
	GCPCredentials     string
	SpeechLanguage     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	YouTubeLanguages []string
	TranscriptWindow time.Duration

	ChunkSize    int
	ChunkOverlap int
	HistoryTurns int
	MaxUploadMB  int

	OtelEnabled     bool
	OtelEndpoint    string
	OtelHeaders     string
	OtelInsecure    bool
	OtelSampleRatio float64
	Environment     string
}

// ConfigurationError lists every required setting that is missing or invalid.
type ConfigurationError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	return "configuration: " + strings.Join(parts, "; ")
}

func (e *ConfigurationError) Unwrap() error { return pkgerrors.ErrConfiguration }

// LoadConfig reads the process environment. A .env file and the YAML file
// named by CONFIG_FILE fill in keys the environment leaves unset.
func LoadConfig(log *logger.Logger) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Failed to load .env", "error", err)
	}
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyYAMLFile(path); err != nil {
			return Config{}, fmt.Errorf("%w: %v", pkgerrors.ErrConfiguration, err)
		}
		log.Info("Loaded config file", "path", path)
	}

	cfg := Config{
		Port:        envutil.String("PORT", "8000"),
		LogMode:     envutil.String("LOG_MODE", "development"),
		LogLevel:    envutil.String("LOG_LEVEL", ""),
		CORSOrigins: envutil.String("CORS_ORIGINS", "*"),

		DatabaseDriver: envutil.String("DATABASE_DRIVER", "postgres"),
		DatabaseURL:    databaseURL(),

		LLMBaseURL:    envutil.String("LLM_BASE_URL", "https://api.groq.com/openai"),
		LLMAPIKey:     envutil.First("LLM_API_KEY", "GROQ_API_KEY"),
		LLMModel:      envutil.String("LLM_MODEL", "openai/gpt-oss-20b"),
		LLMMaxTokens:  envutil.Int("LLM_MAX_TOKENS", 0),
		LLMMaxRetries: envutil.Int("LLM_MAX_RETRIES", 0),
		LLMTimeout:    time.Duration(envutil.Int("LLM_TIMEOUT_SECONDS", 120)) * time.Second,

		EmbedBaseURL:     envutil.String("EMBED_BASE_URL", ""),
		EmbedAPIKey:      envutil.String("EMBED_API_KEY", ""),
		EmbedModel:       envutil.String("EMBED_MODEL", "all-minilm"),
		EmbedDim:         envutil.Int("EMBED_DIM", 384),
		EmbedBatchSize:   envutil.Int("EMBED_BATCH_SIZE", 64),
		EmbedConcurrency: envutil.Int("EMBED_CONCURRENCY", 4),
		EmbedMaxRetries:  envutil.Int("EMBED_MAX_RETRIES", 2),

		VectorBackend:    strings.ToLower(envutil.String("VECTOR_BACKEND", VectorBackendQdrant)),
		QdrantURL:        envutil.String("QDRANT_URL", ""),
		QdrantAPIKey:     envutil.String("QDRANT_API_KEY", ""),
		QdrantCollection: envutil.String("QDRANT_COLLECTION", ""),
		QdrantDistance:   envutil.String("QDRANT_DISTANCE", "Cosine"),
		QdrantAutoCreate: envutil.Bool("QDRANT_AUTO_CREATE", true),

		TranscribeProvider: strings.ToLower(envutil.String("TRANSCRIBE_PROVIDER", TranscribeWhisper)),
		WhisperModel:       envutil.String("WHISPER_MODEL", "whisper-large-v3"),
		GCSAudioBucket:     envutil.String("GCS_AUDIO_BUCKET", ""),
		GCPCredentials:     envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON", ""),
		SpeechLanguage:     envutil.String("SPEECH_LANGUAGE", "en-US"),

		RedisAddr:     envutil.String("REDIS_ADDR", ""),
		RedisPassword: envutil.String("REDIS_PASSWORD", ""),
		RedisDB:       envutil.Int("REDIS_DB", 0),

		YouTubeLanguages: envutil.List("YOUTUBE_LANGUAGES", "en"),
		TranscriptWindow: time.Duration(envutil.Int("TRANSCRIPT_WINDOW_SECONDS", 30)) * time.Second,

		ChunkSize:    envutil.Int("CHUNK_SIZE", 1000),
		ChunkOverlap: envutil.Int("CHUNK_OVERLAP", 20),
		HistoryTurns: envutil.Int("CHAT_HISTORY_TURNS", 10),
		MaxUploadMB:  envutil.Int("MAX_UPLOAD_MB", 25),

		OtelEnabled:     envutil.Bool("OTEL_ENABLED", false),
		OtelEndpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OtelHeaders:     envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""),
		OtelInsecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
		OtelSampleRatio: envutil.Float("OTEL_SAMPLE_RATIO", 1),
		Environment:     envutil.String("APP_ENV", "development"),
	}
	if raw := envutil.String("LLM_TEMPERATURE", ""); raw != "" {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.LLMTemperature = &f
		}
	}
	return cfg, cfg.Validate()
}

// Validate reports every missing required key at once.
func (c Config) Validate() error {
	cerr := &ConfigurationError{}
	if strings.TrimSpace(c.LLMAPIKey) == "" {
		cerr.Missing = append(cerr.Missing, "LLM_API_KEY (or GROQ_API_KEY)")
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		cerr.Missing = append(cerr.Missing, "DATABASE_URL (or POSTGRES_USER/POSTGRES_PASSWORD/POSTGRES_HOST/POSTGRES_DB)")
	}
	if strings.TrimSpace(c.EmbedBaseURL) == "" {
		cerr.Missing = append(cerr.Missing, "EMBED_BASE_URL")
	}
	if c.EmbedDim <= 0 {
		cerr.Invalid = append(cerr.Invalid, "EMBED_DIM")
	}
	switch c.VectorBackend {
	case VectorBackendQdrant:
		if strings.TrimSpace(c.QdrantURL) == "" {
			cerr.Missing = append(cerr.Missing, "QDRANT_URL")
		}
		if strings.TrimSpace(c.QdrantCollection) == "" {
			cerr.Missing = append(cerr.Missing, "QDRANT_COLLECTION")
		}
	case VectorBackendMemory:
	default:
		cerr.Invalid = append(cerr.Invalid, "VECTOR_BACKEND")
	}
	switch c.TranscribeProvider {
	case TranscribeWhisper:
	case TranscribeGCP:
		if strings.TrimSpace(c.GCSAudioBucket) == "" {
			cerr.Missing = append(cerr.Missing, "GCS_AUDIO_BUCKET")
		}
	default:
		cerr.Invalid = append(cerr.Invalid, "TRANSCRIBE_PROVIDER")
	}
	if c.ChunkSize <= 0 {
		cerr.Invalid = append(cerr.Invalid, "CHUNK_SIZE")
	}
	if c.MaxUploadMB <= 0 {
		cerr.Invalid = append(cerr.Invalid, "MAX_UPLOAD_MB")
	}
	if len(cerr.Missing) == 0 && len(cerr.Invalid) == 0 {
		return nil
	}
	return cerr
}

func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// databaseURL prefers DATABASE_URL and otherwise assembles a postgres DSN
// from the POSTGRES_* parts.
func databaseURL() string {
	if v := envutil.String("DATABASE_URL", ""); v != "" {
		return v
	}
	user := envutil.String("POSTGRES_USER", "")
	pass := envutil.String("POSTGRES_PASSWORD", "")
	host := envutil.String("POSTGRES_HOST", "")
	name := envutil.String("POSTGRES_DB", "")
	if user == "" || host == "" || name == "" {
		return ""
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		host, user, pass, name, envutil.String("POSTGRES_PORT", "5432"), envutil.String("POSTGRES_SSLMODE", "disable"))
}

// applyYAMLFile sets each top-level key of the file as an environment
// variable unless the environment already has a non-empty value.
func applyYAMLFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	for k, v := range values {
		key := strings.ToUpper(strings.TrimSpace(k))
		if key == "" || v == nil {
			continue
		}
		if strings.TrimSpace(os.Getenv(key)) != "" {
			continue
		}
		var s string
		switch tv := v.(type) {
		case []any:
			items := make([]string, 0, len(tv))
			for _, it := range tv {
				items = append(items, fmt.Sprint(it))
			}
			s = strings.Join(items, ",")
		default:
			s = fmt.Sprint(tv)
		}
		if err := os.Setenv(key, s); err != nil {
			return err
		}
	}
	return nil
}
