// Package app assembles the process-wide dependency graph: storage,
// generator/embedding/crawler/probe services, the pipeline runner, and
// the job manager the HTTP server drives (spec.md §5, §6).
package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/blogpipeline/internal/articlestore"
	"github.com/ternarybob/blogpipeline/internal/citations"
	"github.com/ternarybob/blogpipeline/internal/common"
	"github.com/ternarybob/blogpipeline/internal/embeddings"
	"github.com/ternarybob/blogpipeline/internal/images"
	"github.com/ternarybob/blogpipeline/internal/interfaces"
	"github.com/ternarybob/blogpipeline/internal/jobs"
	"github.com/ternarybob/blogpipeline/internal/llm"
	"github.com/ternarybob/blogpipeline/internal/perrors"
	"github.com/ternarybob/blogpipeline/internal/pipeline"
	"github.com/ternarybob/blogpipeline/internal/pipeline/stages"
	"github.com/ternarybob/blogpipeline/internal/sitemap"
	"github.com/ternarybob/blogpipeline/internal/storage/badger"
	"github.com/ternarybob/blogpipeline/internal/storage/sqlite"
)

// App holds every long-lived component the CLI and HTTP server share.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	BadgerStore *badger.Store
	SqliteStore *sqlite.Store
	KV          interfaces.KeyValueStorage

	Generator  interfaces.Generator
	Embeddings interfaces.EmbeddingService
	Images     interfaces.ImageGenerator
	Crawler    *sitemap.Crawler
	Probe      interfaces.URLProbe
	Breakers   *perrors.BreakerRegistry

	Runner *pipeline.Runner
	Jobs   *jobs.Manager
}

// New wires every component from cfg and starts the job manager's
// background dispatch loop.
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	badgerStore, err := badger.Open(cfg.Storage.Badger.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("app: open badger store: %w", err)
	}
	a.BadgerStore = badgerStore
	a.KV = badger.NewKVStorage(badgerStore)

	sqliteStore, err := sqlite.Open(cfg.Storage.Sqlite.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("app: open sqlite store: %w", err)
	}
	a.SqliteStore = sqliteStore

	a.Breakers = perrors.NewBreakerRegistry(logger)

	a.Generator = llm.NewFactory(llm.Config{
		GeminiAPIKey:    cfg.Gemini.APIKey,
		GeminiModel:     cfg.Gemini.Model,
		ClaudeAPIKey:    cfg.Claude.APIKey,
		ClaudeModel:     cfg.Claude.Model,
		DefaultProvider: llm.ProviderType(cfg.LLM.DefaultProvider),
	}, logger)

	a.Embeddings = embeddings.NewService(cfg.Gemini.APIKey, cfg.Gemini.EmbeddingModel, logger)
	a.Images = images.NewGenerator(cfg.Gemini.APIKey, "", logger)
	a.Probe = citations.NewHTTPProbe(cfg.Citations.RequestsPerSecond)

	a.Crawler = sitemap.NewCrawler(sitemap.Config{
		MaxURLs:           cfg.Crawler.MaxURLs,
		MaxCacheSize:      cfg.Crawler.MaxCacheEntries,
		CacheTTL:          cfg.Crawler.CacheTTL,
		RequestsPerSecond: cfg.Crawler.RequestsPerSecond,
	}, a.Breakers, logger).WithDurable(a.BadgerStore)

	store := articlestore.NewStore(a.KV, a.Embeddings, logger)

	a.Runner = pipeline.NewRunner(
		[]pipeline.Stage{
			stages.NewDataFetchStage(a.Crawler, logger),
			stages.NewPromptBuildStage(),
			stages.NewGenerateStage(a.Generator, a.Breakers, logger, cfg.Gemini.Model),
			stages.NewExtractionStage(),
		},
		[]pipeline.ParallelStage{
			stages.NewCitationsStage(a.Probe, a.Generator, logger),
			stages.NewInternalLinksStage(a.Probe, logger),
			stages.NewTOCStage(),
			stages.NewMetadataStage(),
			stages.NewFAQStage(),
			stages.NewImageStage(a.Images, a.Breakers, logger),
		},
		[]pipeline.Stage{
			stages.NewCleanupStage(a.Probe, logger),
			stages.NewReviewStage(a.Generator, logger),
			stages.NewStorageStage(store, logger),
		},
		logger,
	)

	a.Jobs = jobs.NewManager(a.SqliteStore, a.Runner, cfg.Jobs, logger)
	if err := a.Jobs.Start(ctx); err != nil {
		return nil, fmt.Errorf("app: start job manager: %w", err)
	}

	return a, nil
}

// Close releases every component holding a file handle or background
// goroutine.
func (a *App) Close() {
	a.Jobs.Stop()
	if a.Generator != nil {
		a.Generator.Close()
	}
	if a.SqliteStore != nil {
		a.SqliteStore.Close()
	}
	if a.BadgerStore != nil {
		a.BadgerStore.Close()
	}
}
