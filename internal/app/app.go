package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/ragdesk/internal/config"
	"github.com/markdave123-py/ragdesk/internal/core"
	db "github.com/markdave123-py/ragdesk/internal/core/database"
	"github.com/markdave123-py/ragdesk/internal/core/docservice"
	"github.com/markdave123-py/ragdesk/internal/core/embedding"
	"github.com/markdave123-py/ragdesk/internal/core/extractors"
	"github.com/markdave123-py/ragdesk/internal/core/ingestion_engine"
	"github.com/markdave123-py/ragdesk/internal/core/llm"
	"github.com/markdave123-py/ragdesk/internal/core/memstore"
	objectclient "github.com/markdave123-py/ragdesk/internal/core/object-client"
	"github.com/markdave123-py/ragdesk/internal/core/textsplitter"
	"github.com/markdave123-py/ragdesk/internal/core/tokenizer"
	"github.com/markdave123-py/ragdesk/internal/logger"
	"github.com/markdave123-py/ragdesk/internal/services"
)

type App struct {
	DBClient     core.DbClient
	ObjectClient core.ObjectClient
	Ingestor     *ingestion_engine.DocumentIngestor
	Queue        *ingestion_engine.Queue
	Documents    *services.DocumentService
	Users        *services.UserService
	Retrieval    *services.RetrievalService
	Server       *Server

	log     *zap.Logger
	closers []func() error
}

// NewApp connects the stores and wires the ingestion pipeline and HTTP server.
func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(logger.WithContext(ctx, log), 5*time.Minute)
	defer cancel()

	a := &App{log: log}
	if err := a.connectStores(appCtx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	tk, err := tokenizer.New()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("tokenizer: %w", err)
	}
	splitter, err := textsplitter.New(tk, cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("splitter: %w", err)
	}

	embedder := embedding.New(
		embedding.WithBatchSize(cfg.EmbedBatchSize),
		embedding.WithParallelism(cfg.EmbedParallelism),
	)
	defaults := EmbeddingDefaults(cfg)

	a.Ingestor = ingestion_engine.NewDocumentIngestor(
		a.DBClient,
		a.ObjectClient,
		docservice.New(cfg.DocServiceURL, cfg.DocServiceTimeout, splitter),
		extractors.NewRegistry(splitter),
		embedder,
		&ingestion_engine.IngestConfig{
			ExtractTimeout: cfg.DocServiceTimeout,
			EmbedTimeout:   cfg.EmbedTimeout,
			DocServiceKey:  cfg.DocServiceKey,
			Embedding:      defaults,
		},
	)

	a.Queue, err = ingestion_engine.NewQueue(a.Ingestor, cfg.IngestWorkers, cfg.RequestTimeout, log.Named("ingest"))
	if err != nil {
		a.Close()
		return nil, err
	}

	var generator core.LLMProvider
	gemini, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
	switch {
	case err == nil:
		generator = gemini
		a.closers = append(a.closers, gemini.Close)
	case errors.Is(err, llm.ErrNoAPIKey):
		log.Info("GEMINI_API_KEY not set, chat returns matching chunks only")
	default:
		a.Close()
		return nil, fmt.Errorf("couldn't initialize the answer generator: %w", err)
	}

	a.Documents = services.NewDocumentService(a.DBClient, a.ObjectClient, cfg.BucketName)
	a.Users = services.NewUserService(a.DBClient)
	a.Retrieval = services.NewRetrievalService(a.DBClient, embedder, generator, defaults)
	a.Server = NewServer(cfg, log, a)
	return a, nil
}

func (a *App) connectStores(ctx context.Context, cfg *config.Config) error {
	if cfg.MemoryStore {
		a.DBClient = memstore.New()
		a.ObjectClient = memstore.NewObjects()
		a.log.Warn("using in-memory stores, data is lost on exit")
		return nil
	}

	dbClient, err := db.NewDatabaseClient(ctx, cfg)
	if err != nil {
		return err
	}
	a.DBClient = dbClient
	a.closers = append(a.closers, dbClient.Close)
	a.log.Info("database initialized and ready")

	objClient, err := objectclient.NewS3Client(ctx, cfg)
	if err != nil {
		return err
	}
	a.ObjectClient = objClient
	a.log.Info("object client initialized and ready")
	return nil
}

// EmbeddingDefaults are the server-wide embedding credentials from cfg.
func EmbeddingDefaults(cfg *config.Config) embedding.Defaults {
	return embedding.Defaults{
		APIKey:          cfg.OpenAIAPIKey,
		BaseURL:         cfg.OpenAIBaseURL,
		Model:           cfg.EmbedModel,
		Dimensions:      cfg.EmbedDim,
		AzureAPIKey:     cfg.AzureOpenAIKey,
		AzureEndpoint:   cfg.AzureOpenAIEndpoint,
		AzureDeployment: cfg.AzureEmbedDeployment,
		AzureAPIVersion: cfg.AzureOpenAIAPIVersion,
	}
}

// Close drains the ingestion queue and releases connections.
func (a *App) Close() {
	if a.Queue != nil {
		a.Queue.Release()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
