package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/JKristilere/smart-summarizer/internal/http/response"
	"github.com/JKristilere/smart-summarizer/internal/ingestion"
	pkgerrors "github.com/JKristilere/smart-summarizer/internal/pkg/errors"
	"github.com/JKristilere/smart-summarizer/internal/services"
)

// DefaultMaxUploadBytes matches the Whisper upload limit.
const DefaultMaxUploadBytes int64 = 25 << 20

type IngestHandler struct {
	grounding      services.GroundingService
	maxUploadBytes int64
}

func NewIngestHandler(grounding services.GroundingService, maxUploadBytes int64) *IngestHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &IngestHandler{grounding: grounding, maxUploadBytes: maxUploadBytes}
}

type ingestYouTubeReq struct {
	URL   string `json:"url"`
	Query string `json:"query"`
}

// POST /ingest/youtube/
func (h *IngestHandler) IngestYouTube(c *gin.Context) {
	var req ingestYouTubeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		response.RespondErr(c, fmt.Errorf("%w: url is required", pkgerrors.ErrInvalidReference))
		return
	}
	res, err := h.grounding.IngestYouTube(c.Request.Context(), req.URL, req.Query)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"summary":  res.Summary,
		"video_id": res.ContentID,
		"status":   response.StatusSuccess,
	})
}

// POST /ingest/audio/ (multipart "file", optional "query" form field or query param)
func (h *IngestHandler) IngestAudio(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+(1<<20))

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			response.RespondError(c, http.StatusRequestEntityTooLarge, "upload_too_large", fmt.Errorf("upload exceeds %d bytes", h.maxUploadBytes))
			return
		}
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("missing file: %w", err))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if !ingestion.IsAllowedAudioType(contentType) {
		response.RespondErr(c, fmt.Errorf("%w: %q (allowed: %s)",
			pkgerrors.ErrUnsupportedMediaType, contentType, strings.Join(ingestion.AllowedAudioTypes, ", ")))
		return
	}
	if header.Size > h.maxUploadBytes {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "upload_too_large", fmt.Errorf("upload exceeds %d bytes", h.maxUploadBytes))
		return
	}

	data, err := readUpload(header)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	query := c.PostForm("query")
	if strings.TrimSpace(query) == "" {
		query = c.Query("query")
	}

	res, err := h.grounding.IngestAudio(c.Request.Context(), services.AudioUpload{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}, query)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"summary": res.Summary,
		"file_id": res.ContentID,
		"status":  response.StatusSuccess,
	})
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return data, nil
}
