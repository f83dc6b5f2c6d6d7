package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConfiguration marks missing or malformed startup configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidReference marks a malformed URL or content identifier.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrUnsupportedMediaType marks an upload outside the audio allow-list.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrEmbeddingFailure     = errors.New("embedding failure")
	ErrLLMUnavailable       = errors.New("llm unavailable")
	ErrLLMRateLimited       = errors.New("llm rate limited")
	// ErrDimensionMismatch marks text/embedding slices of different length
	// or vectors whose width does not match the index.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrIngestionInProgress is returned when another request holds the
	// ingestion lock for the same content id.
	ErrIngestionInProgress = errors.New("ingestion in progress")
)

// Ingestion stages reported by IngestionFailedError.
const (
	StageResolve    = "resolve"
	StageTranscript = "transcript"
	StageTranscribe = "transcribe"
	StageSplit      = "split"
	StageEmbed      = "embed"
	StageIndex      = "index"
	StagePersist    = "persist"
)

// IngestionFailedError reports the ingest stage that failed and the cause.
type IngestionFailedError struct {
	Stage string
	Cause error
}

func (e *IngestionFailedError) Error() string {
	if e == nil {
		return "ingestion failed"
	}
	if e.Cause == nil {
		return fmt.Sprintf("ingestion failed at %s", e.Stage)
	}
	return fmt.Sprintf("ingestion failed at %s: %v", e.Stage, e.Cause)
}

func (e *IngestionFailedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func IngestionFailed(stage string, cause error) error {
	return &IngestionFailedError{Stage: stage, Cause: cause}
}

// Wrap tags cause with the sentinel kind while keeping both visible to errors.Is.
func Wrap(kind error, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}
