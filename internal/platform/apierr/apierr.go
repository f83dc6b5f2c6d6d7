package apierr

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/JKristilere/smart-summarizer/internal/pkg/errors"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

var kinds = []struct {
	kind   error
	status int
	code   string
}{
	{pkgerrors.ErrInvalidReference, http.StatusBadRequest, "invalid_reference"},
	{pkgerrors.ErrUnsupportedMediaType, http.StatusBadRequest, "unsupported_media_type"},
	{pkgerrors.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
	{pkgerrors.ErrNotFound, http.StatusNotFound, "not_found"},
	{pkgerrors.ErrIngestionInProgress, http.StatusConflict, "ingestion_in_progress"},
	{pkgerrors.ErrLLMRateLimited, http.StatusTooManyRequests, "llm_rate_limited"},
	{pkgerrors.ErrLLMUnavailable, http.StatusBadGateway, "llm_unavailable"},
	{pkgerrors.ErrEmbeddingFailure, http.StatusBadGateway, "embedding_failure"},
	{pkgerrors.ErrDimensionMismatch, http.StatusInternalServerError, "dimension_mismatch"},
}

// FromError maps an error onto an HTTP status and code. An *Error already in
// the chain wins; ingestion failures map to their cause's kind when it has
// one and to ingestion_failed otherwise.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	for _, k := range kinds {
		if errors.Is(err, k.kind) {
			return New(k.status, k.code, err)
		}
	}
	var ingestErr *pkgerrors.IngestionFailedError
	if errors.As(err, &ingestErr) {
		return New(http.StatusInternalServerError, "ingestion_failed", err)
	}
	return New(http.StatusInternalServerError, "internal", err)
}
