package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/JKristilere/smart-summarizer/internal/http/handlers"
	httpMW "github.com/JKristilere/smart-summarizer/internal/http/middleware"
	"github.com/JKristilere/smart-summarizer/internal/observability"
	"github.com/JKristilere/smart-summarizer/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	CORSOrigins string
	Tracing     bool
	ServiceName string

	HealthHandler  *httpH.HealthHandler
	IngestHandler  *httpH.IngestHandler
	ChatHandler    *httpH.ChatHandler
	ContentHandler *httpH.ContentHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Tracing {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.ProcessTime())
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/", cfg.HealthHandler.Root)
		r.GET("/health", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	// Ingestion
	if cfg.IngestHandler != nil {
		r.POST("/ingest/youtube/", cfg.IngestHandler.IngestYouTube)
		r.POST("/ingest/audio/", cfg.IngestHandler.IngestAudio)
	}

	// Chat
	if cfg.ChatHandler != nil {
		r.POST("/chat/", cfg.ChatHandler.Chat)
		r.POST("/chat/stream/", cfg.ChatHandler.Stream)
		r.POST("/chat/history/", cfg.ChatHandler.History)
		r.DELETE("/chat/history/:file_id", cfg.ChatHandler.ClearHistory)
	}

	// Content
	if cfg.ContentHandler != nil {
		r.GET("/content/:file_id", cfg.ContentHandler.GetContent)
	}

	return r
}
