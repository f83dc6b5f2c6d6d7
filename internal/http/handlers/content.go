package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/JKristilere/smart-summarizer/internal/http/response"
	"github.com/JKristilere/smart-summarizer/internal/services"
)

type ContentHandler struct {
	grounding services.GroundingService
}

func NewContentHandler(grounding services.GroundingService) *ContentHandler {
	return &ContentHandler{grounding: grounding}
}

// GET /content/:file_id
func (h *ContentHandler) GetContent(c *gin.Context) {
	item, err := h.grounding.Content(c.Request.Context(), strings.TrimSpace(c.Param("file_id")))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"content": item,
		"status":  response.StatusSuccess,
	})
}
