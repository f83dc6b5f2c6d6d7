package services

import (
	"fmt"
	"strings"

	types "github.com/JKristilere/smart-summarizer/internal/domain"
	"github.com/JKristilere/smart-summarizer/internal/platform/openai"
)

const (
	summarySystemPrompt = "You are a helpful assistant that summarizes text based on the provided context."
	querySystemPrompt   = "You are a helpful assistant that summarizes text based on the user's query and provided context."
	chatSystemPrompt    = "You are a helpful assistant answering questions about a video or audio transcript. " +
		"Use the conversation history and any relevant context provided with the question. " +
		"If the answer is not in the context or history, say so."
)

// JoinContext joins retrieved chunk texts with a blank line.
func JoinContext(chunks []string) string {
	return strings.Join(chunks, "\n\n")
}

// BuildSummaryMessages is the fixed summarization prompt. YouTube and audio
// items only differ in how the source is named.
func BuildSummaryMessages(kind types.SourceKind, context string) []openai.Message {
	subject := "youtube"
	if kind == types.SourceAudio {
		subject = "audio transcript"
	}
	user := fmt.Sprintf("Generate a well detailed summary of the %s using the following context:\n\n%s\n\nSummary:", subject, context)
	return []openai.Message{
		{Role: openai.RoleSystem, Content: summarySystemPrompt},
		{Role: openai.RoleUser, Content: user},
	}
}

func BuildQueryMessages(query, context string) []openai.Message {
	user := fmt.Sprintf("Summarize the following context for the query: '%s'\n\nContext:\n%s\n\nSummary:", query, context)
	return []openai.Message{
		{Role: openai.RoleSystem, Content: querySystemPrompt},
		{Role: openai.RoleUser, Content: user},
	}
}

// BuildChatMessages lays out system prompt, prior turns in order and the new
// question. A non-empty context is attached to the question.
func BuildChatMessages(context, query string, history []*types.ChatTurn) []openai.Message {
	out := make([]openai.Message, 0, len(history)+2)
	out = append(out, openai.Message{Role: openai.RoleSystem, Content: chatSystemPrompt})
	for _, t := range history {
		if t == nil || strings.TrimSpace(t.Message) == "" {
			continue
		}
		role := openai.RoleUser
		if t.Role == types.RoleAssistant {
			role = openai.RoleAssistant
		}
		out = append(out, openai.Message{Role: role, Content: t.Message})
	}
	user := query
	if strings.TrimSpace(context) != "" {
		user = fmt.Sprintf("%s\n\nAnswer using the conversation history and this relevant context:\n%s", query, context)
	}
	out = append(out, openai.Message{Role: openai.RoleUser, Content: user})
	return out
}
