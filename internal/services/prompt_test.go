package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/JKristilere/smart-summarizer/internal/domain"
	"github.com/JKristilere/smart-summarizer/internal/platform/openai"
)

func TestBuildSummaryMessages(t *testing.T) {
	yt := BuildSummaryMessages(types.SourceYouTube, "ctx")
	require.Len(t, yt, 2)
	assert.Equal(t, openai.RoleSystem, yt[0].Role)
	assert.Equal(t, summarySystemPrompt, yt[0].Content)
	assert.Equal(t, "Generate a well detailed summary of the youtube using the following context:\n\nctx\n\nSummary:", yt[1].Content)

	audio := BuildSummaryMessages(types.SourceAudio, "ctx")
	assert.Contains(t, audio[1].Content, "summary of the audio transcript")
}

func TestBuildQueryMessages(t *testing.T) {
	msgs := BuildQueryMessages("why?", "a\n\nb")
	require.Len(t, msgs, 2)
	assert.Equal(t, querySystemPrompt, msgs[0].Content)
	assert.Equal(t, "Summarize the following context for the query: 'why?'\n\nContext:\na\n\nb\n\nSummary:", msgs[1].Content)
}

func TestBuildChatMessagesIsPure(t *testing.T) {
	id := "vid"
	history := []*types.ChatTurn{
		{Role: types.RoleUser, Message: "q1", ContentID: &id},
		{Role: types.RoleAssistant, Message: "a1", ContentID: &id},
		{Role: types.RoleUser, Message: "  "},
	}
	a := BuildChatMessages("", "q2", history)
	b := BuildChatMessages("", "q2", history)
	assert.Equal(t, a, b)
	assert.Len(t, history, 3)

	require.Len(t, a, 4)
	assert.Equal(t, openai.RoleSystem, a[0].Role)
	assert.Equal(t, openai.Message{Role: openai.RoleUser, Content: "q1"}, a[1])
	assert.Equal(t, openai.Message{Role: openai.RoleAssistant, Content: "a1"}, a[2])
	assert.Equal(t, openai.Message{Role: openai.RoleUser, Content: "q2"}, a[3])

	withCtx := BuildChatMessages("chunk one", "q2", nil)
	last := withCtx[len(withCtx)-1].Content
	assert.True(t, strings.HasPrefix(last, "q2\n\n"))
	assert.True(t, strings.HasSuffix(last, "chunk one"))
}
