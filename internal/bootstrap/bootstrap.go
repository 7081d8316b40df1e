package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/kg-ingest/internal/config"
	"github.com/kirillkom/kg-ingest/internal/core/ports"
	"github.com/kirillkom/kg-ingest/internal/core/usecase"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/chunking"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/cypher"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/events/nats"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/feed/rss"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/graph/neo4j"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/llm/openai"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/repository/memory"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/resilience"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/storage/piecestore"
	"github.com/kirillkom/kg-ingest/internal/observability/metrics"
)

// App holds the lifecycle-scoped clients of one process. Every collaborator
// is built once here and shared across requests.
type App struct {
	Config config.Config

	Files ports.FileIngestor
	Feeds ports.FeedIngestor
	Jobs  ports.JobReader

	HTTPMetrics *metrics.HTTPServerMetrics

	closers []func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	app := &App{Config: cfg}
	ready := false
	defer func() {
		if !ready {
			app.Close()
		}
	}()

	executor := resilience.NewExecutor(cfg.Resilience())
	httpMetrics := metrics.NewHTTPServerMetrics(service)
	pipelineMetrics := metrics.NewPipelineMetrics(service, httpMetrics.Registry())
	app.HTTPMetrics = httpMetrics

	store, err := newContentStore(cfg, executor)
	if err != nil {
		return nil, err
	}

	extractor, err := newExtractor(cfg, executor)
	if err != nil {
		return nil, err
	}

	driver, err := neo4j.OpenDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUsername, cfg.Neo4jPassword)
	if err != nil {
		return nil, fmt.Errorf("init graph database: %w", err)
	}
	app.closers = append(app.closers, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := driver.Close(closeCtx); err != nil {
			slog.Warn("neo4j_close_failed", "error", err)
		}
	})
	if err := neo4j.EnsureSchema(ctx, driver, cfg.Neo4jDatabase); err != nil {
		return nil, fmt.Errorf("ensure graph schema: %w", err)
	}

	jobs, err := app.newJobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var events ports.EventPublisher
	if cfg.NATSEnabled {
		publisher, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor})
		if err != nil {
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		app.closers = append(app.closers, publisher.Close)
		events = publisher
	}

	deps := usecase.PipelineDeps{
		Uploader:              usecase.NewContentUploader(store, chunking.NewSplitter(cfg.MaxPieceBytes)),
		Extractor:             extractor,
		Generator:             cypher.NewGenerator(),
		Graph:                 neo4j.NewExecutor(driver, cfg.Neo4jDatabase, executor),
		Jobs:                  jobs,
		Events:                events,
		Observer:              pipelineMetrics,
		ExtractionMaxAttempts: cfg.ExtractionMaxAttempts,
	}
	fetcher := rss.NewFetcher(time.Duration(cfg.FeedTimeoutSec)*time.Second, cfg.FeedMaxBytes, executor)

	app.Files = usecase.NewFilePipeline(deps, plaintext.NewDecoder(), cfg.APIMaxUploadBytes)
	app.Feeds = usecase.NewFeedPipeline(deps, fetcher)
	app.Jobs = usecase.NewJobQuery(jobs)

	slog.Info("bootstrap_ready",
		"service", service,
		"storage_backend", cfg.StorageBackend,
		"extraction_provider", cfg.ExtractionProvider,
		"job_store", cfg.JobStore,
		"nats_enabled", cfg.NATSEnabled,
	)
	ready = true
	return app, nil
}

func newContentStore(cfg config.Config, executor *resilience.Executor) (ports.ContentStore, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendPieceStore:
		client, err := piecestore.New(piecestore.Config{
			Endpoint:   cfg.PieceStoreEndpoint,
			SigningKey: cfg.PieceStoreSigningKey,
			DatasetID:  cfg.PieceStoreDatasetID,
		}, executor)
		if err != nil {
			return nil, fmt.Errorf("init piece store: %w", err)
		}
		return client, nil
	case config.StorageBackendLocalFS:
		storage, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		return storage, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func newExtractor(cfg config.Config, executor *resilience.Executor) (ports.StructuredExtractor, error) {
	switch cfg.ExtractionProvider {
	case config.ExtractionProviderOpenAI:
		extractor, err := openai.NewExtractor(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.ExtractionMaxChars, executor)
		if err != nil {
			return nil, fmt.Errorf("init openai extractor: %w", err)
		}
		return extractor, nil
	case config.ExtractionProviderOllama:
		extractor, err := ollama.NewExtractor(ollama.New(cfg.OllamaURL, cfg.OllamaModel, executor), cfg.ExtractionMaxChars)
		if err != nil {
			return nil, fmt.Errorf("init ollama extractor: %w", err)
		}
		return extractor, nil
	default:
		return nil, fmt.Errorf("unknown extraction provider %q", cfg.ExtractionProvider)
	}
}

func (a *App) newJobStore(ctx context.Context, cfg config.Config) (ports.JobStore, error) {
	switch cfg.JobStore {
	case config.JobStorePostgres:
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		repo := postgres.NewJobRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure job schema: %w", err)
		}
		return repo, nil
	case config.JobStoreMemory:
		return memory.NewJobStore(), nil
	default:
		return nil, fmt.Errorf("unknown job store %q", cfg.JobStore)
	}
}

// Close releases clients in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
