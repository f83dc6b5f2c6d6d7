package app

import (
	"fmt"

	"github.com/JKristilere/smart-summarizer/internal/platform/logger"
	"github.com/JKristilere/smart-summarizer/internal/services"
)

type Services struct {
	Grounding services.GroundingService
}

func wireServices(log *logger.Logger, cfg Config, reposet Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")
	grounding, err := services.NewGroundingService(log, services.GroundingDeps{
		Contents:    reposet.ContentItem,
		Turns:       reposet.ChatTurn,
		Index:       clients.Index,
		Embedder:    clients.Embedder,
		LLM:         clients.LLM,
		Transcripts: clients.YouTube,
		Transcriber: clients.Transcriber,
		Locker:      clients.Locker,
	}, services.GroundingConfig{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		HistoryTurns: cfg.HistoryTurns,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init grounding service: %w", err)
	}
	return Services{Grounding: grounding}, nil
}
