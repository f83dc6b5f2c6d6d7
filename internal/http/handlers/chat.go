package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/JKristilere/smart-summarizer/internal/domain"
	"github.com/JKristilere/smart-summarizer/internal/http/response"
	pkgerrors "github.com/JKristilere/smart-summarizer/internal/pkg/errors"
	"github.com/JKristilere/smart-summarizer/internal/platform/logger"
	"github.com/JKristilere/smart-summarizer/internal/services"
)

type ChatHandler struct {
	log       *logger.Logger
	grounding services.GroundingService
}

func NewChatHandler(log *logger.Logger, grounding services.GroundingService) *ChatHandler {
	return &ChatHandler{log: log.With("handler", "ChatHandler"), grounding: grounding}
}

type chatReq struct {
	Query               string `json:"query"`
	FileID              string `json:"file_id"`
	IncludeVectorSearch *bool  `json:"include_vector_search"`
	TopK                *int   `json:"top_k"`
}

func (r chatReq) toService() services.ChatRequest {
	out := services.ChatRequest{
		Query:               r.Query,
		ContentID:           strings.TrimSpace(r.FileID),
		IncludeVectorSearch: true,
		TopK:                3,
	}
	if r.IncludeVectorSearch != nil {
		out.IncludeVectorSearch = *r.IncludeVectorSearch
	}
	if r.TopK != nil {
		out.TopK = *r.TopK
	}
	return out
}

// POST /chat/
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	reply, err := h.grounding.ChatTurn(c.Request.Context(), req.toService())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"response": reply,
		"file_id":  req.FileID,
		"status":   response.StatusSuccess,
	})
}

// POST /chat/stream/
//
// The reply is streamed as chunked text/plain. Once the first byte is out
// the status can no longer change, so late failures are written as text.
func (h *ChatHandler) Stream(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	stream, err := h.grounding.StreamChatTurn(c.Request.Context(), req.toService())
	if err != nil {
		response.RespondErr(c, err)
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for frag := range stream.Fragments() {
		if _, werr := c.Writer.WriteString(frag); werr != nil {
			// Client went away; keep draining so the producer can finish.
			continue
		}
		c.Writer.Flush()
	}

	if _, err := stream.Wait(); err != nil && c.Request.Context().Err() == nil {
		h.log.Warn("chat stream failed", "file_id", req.FileID, "error", err)
		_, _ = c.Writer.WriteString(fmt.Sprintf("\n\nError: %v", err))
		c.Writer.Flush()
	}
}

type historyReq struct {
	FileID string `json:"file_id"`
	Limit  int    `json:"limit"`
}

// POST /chat/history/
func (h *ChatHandler) History(c *gin.Context) {
	var req historyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if strings.TrimSpace(req.FileID) == "" {
		response.RespondErr(c, fmt.Errorf("%w: file_id is required", pkgerrors.ErrInvalidArgument))
		return
	}
	turns, err := h.grounding.History(c.Request.Context(), strings.TrimSpace(req.FileID), req.Limit)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if turns == nil {
		turns = []*types.ChatTurn{}
	}
	response.RespondOK(c, gin.H{
		"history": turns,
		"count":   len(turns),
		"status":  response.StatusSuccess,
	})
}

// DELETE /chat/history/:file_id
func (h *ChatHandler) ClearHistory(c *gin.Context) {
	fileID := strings.TrimSpace(c.Param("file_id"))
	deleted, err := h.grounding.ClearHistory(c.Request.Context(), fileID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"message": fmt.Sprintf("Chat history cleared for %s (%d messages deleted)", fileID, deleted),
		"status":  response.StatusSuccess,
	})
}
