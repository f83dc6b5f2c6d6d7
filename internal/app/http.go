package app

import (
	"github.com/gin-gonic/gin"

	"github.com/JKristilere/smart-summarizer/internal/http"
	httpH "github.com/JKristilere/smart-summarizer/internal/http/handlers"
	"github.com/JKristilere/smart-summarizer/internal/observability"
	"github.com/JKristilere/smart-summarizer/internal/platform/logger"
)

type Handlers struct {
	Health  *httpH.HealthHandler
	Ingest  *httpH.IngestHandler
	Chat    *httpH.ChatHandler
	Content *httpH.ContentHandler
}

func wireHandlers(log *logger.Logger, cfg Config, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:  httpH.NewHealthHandler(),
		Ingest:  httpH.NewIngestHandler(services.Grounding, cfg.MaxUploadBytes()),
		Chat:    httpH.NewChatHandler(log, services.Grounding),
		Content: httpH.NewContentHandler(services.Grounding),
	}
}

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:            log,
		Metrics:        observability.Current(),
		CORSOrigins:    cfg.CORSOrigins,
		Tracing:        cfg.OtelEnabled,
		ServiceName:    "smart-summarizer",
		HealthHandler:  handlers.Health,
		IngestHandler:  handlers.Ingest,
		ChatHandler:    handlers.Chat,
		ContentHandler: handlers.Content,
	})
}
