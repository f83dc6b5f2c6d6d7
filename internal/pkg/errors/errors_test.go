package errors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsKindAndCause(t *testing.T) {
	err := Wrap(ErrEmbeddingFailure, context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrEmbeddingFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, ErrLLMUnavailable, Wrap(ErrLLMUnavailable, nil))
}

func TestIngestionFailedUnwrapsCause(t *testing.T) {
	err := IngestionFailed(StageEmbed, Wrap(ErrEmbeddingFailure, errors.New("boom")))

	var failed *IngestionFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, StageEmbed, failed.Stage)
	assert.ErrorIs(t, err, ErrEmbeddingFailure)
	assert.Contains(t, err.Error(), "ingestion failed at embed")
}
