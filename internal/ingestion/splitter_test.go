package ingestion

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/JKristilere/smart-summarizer/internal/pkg/errors"
)

func TestSplitShortTextIsOneChunk(t *testing.T) {
	chunks, err := Split("hello world", DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello world"}, chunks)
}

func TestSplitBlankText(t *testing.T) {
	chunks, err := Split("  \n\n ", 100, 10)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitPrefersParagraphs(t *testing.T) {
	p1 := strings.Repeat("a", 40)
	p2 := strings.Repeat("b", 40)
	p3 := strings.Repeat("c", 40)
	chunks, err := Split(p1+"\n\n"+p2+"\n\n"+p3, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{p1, p2, p3}, chunks)
}

func TestSplitRespectsSizeAndCoversText(t *testing.T) {
	words := make([]string, 0, 600)
	for i := 0; i < 600; i++ {
		words = append(words, "word")
	}
	text := strings.Join(words[:300], " ") + "\n" + strings.Join(words[300:], " ")

	chunks, err := Split(text, 100, 20)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	total := 0
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 100)
		total += strings.Count(c, "word")
	}
	assert.GreaterOrEqual(t, total, 600, "every word lands in some chunk")
}

func TestSplitIsDeterministic(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog.\n", 80)
	a, err := Split(text, 200, 20)
	require.NoError(t, err)
	b, err := Split(text, 200, 20)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSplitClampsOverlap(t *testing.T) {
	text := strings.Repeat("x ", 200)
	chunks, err := Split(text, 50, 80)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
}

func TestSplitRejectsNonPositiveSize(t *testing.T) {
	_, err := Split("text", 0, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidArgument))
}
