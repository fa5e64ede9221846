// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/klvl/alynappi/internal/config"
	"github.com/klvl/alynappi/internal/core"
	db "github.com/klvl/alynappi/internal/core/database"
	"github.com/klvl/alynappi/internal/core/ingestion_engine"
	"github.com/klvl/alynappi/internal/core/llm"
	objectclient "github.com/klvl/alynappi/internal/core/object-client"
	"github.com/klvl/alynappi/internal/services"
)

type App struct {
	Config   *config.Config
	Sources  *config.Sources
	DBClient *db.DatabaseClient
	Ingestor *ingestion_engine.DocumentIngestor
	Server   *Server

	closers []io.Closer
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a := &App{Config: cfg}

	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	a.Sources = sources

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBClient = dbClient
	a.closers = append(a.closers, dbClient)
	log.Info().Int("embed_dim", cfg.EmbedDim).Msg("database initialized and ready")

	var objClient core.ObjectClient
	if cfg.ArchiveEnabled() {
		s3Client, err := objectclient.NewS3Client(appCtx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		objClient = s3Client
	} else {
		log.Warn().Msg("object storage not configured; uploads and PDF archiving disabled")
	}

	mistral := llm.NewMistralClient(cfg.MistralAPIKey, cfg.MistralBaseURL, newMistralHTTPClient())

	embedder, err := a.newEmbedder(appCtx, cfg, mistral)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}

	var extractor core.DocumentExtractor
	switch cfg.Extractor {
	case "local":
		extractor = ingestion_engine.NewPDFTextExtractor()
	default:
		extractor = llm.NewMistralOCR(mistral, cfg.OCRModel)
	}

	useReadability := true
	webFetcher := ingestion_engine.NewHTTPWebFetcher(&http.Client{Timeout: 30 * time.Second}, useReadability)

	ingCfg := &ingestion_engine.IngestConfig{
		ChunkSize:          cfg.ChunkSize,
		ChunkOverlap:       cfg.ChunkOverlap,
		BatchSize:          cfg.EmbedBatchSize,
		MinWebContentChars: sources.Web.MinContentChars,
		MinWebChunkChars:   sources.Web.MinChunkChars,
	}
	a.Ingestor = ingestion_engine.NewDocumentIngestor(dbClient, objClient, embedder, extractor, webFetcher, ingCfg)

	chatSvc := services.NewChatService(dbClient, embedder, llm.NewMistralChat(mistral), services.ChatOptionsFromConfig(cfg))
	var queue ingestion_engine.Ingestor
	if objClient != nil {
		queue = a.Ingestor
	}
	docSvc := services.NewDocumentService(dbClient, objClient, queue, sources)

	a.Server = NewServer(cfg, dbClient, chatSvc, docSvc)
	return a, nil
}

// newMistralHTTPClient has no client Timeout: it would also cut chat streams and the OCR call.
// Deadlines come from the request contexts.
func newMistralHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSHandshakeTimeout = 15 * time.Second
	return &http.Client{Transport: transport}
}

func (a *App) newEmbedder(ctx context.Context, cfg *config.Config, mistral *llm.MistralClient) (core.EmbeddingProvider, error) {
	if cfg.EmbedProvider == "gemini" {
		gemini, err := llm.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel, cfg.EmbedDim)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gemini)
		log.Info().Str("model", cfg.EmbedModel).Msg("gemini embedder ready")
		return gemini, nil
	}
	log.Info().Str("model", cfg.EmbedModel).Msg("mistral embedder ready")
	return llm.NewMistralEmbedder(mistral, cfg.EmbedModel), nil
}

// Close releases clients in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}
