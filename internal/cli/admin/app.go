package admin

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cloo-solutions/coverdraft/internal/config"
	"github.com/cloo-solutions/coverdraft/internal/database"
	"github.com/cloo-solutions/coverdraft/internal/index"
	"github.com/cloo-solutions/coverdraft/internal/jobs"
	"github.com/cloo-solutions/coverdraft/internal/llm"
	"github.com/cloo-solutions/coverdraft/internal/openai"
	"github.com/cloo-solutions/coverdraft/internal/repository"
	"github.com/cloo-solutions/coverdraft/internal/service"
	"github.com/cloo-solutions/coverdraft/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"
)

const migrationsDir = "migrations"

// app holds the wired services shared by serve and the admin commands.
type app struct {
	cfg        *config.Config
	pool       *pgxpool.Pool
	index      *index.Memory
	weights    *service.WeightCalculator
	documents  *service.DocumentService
	indexing   *service.IndexingService
	retriever  *service.Retriever
	generation *service.GenerationService
	letters    *service.CoverLetterService
	registry   *llm.Registry
	jobRepo    *repository.IndexJobRepository
	worker     *jobs.IndexWorker
}

type appOptions struct {
	migrate bool
	warm    bool
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newApp connects to the database and builds every service. The caller
// owns the returned app and must call close.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	if opts.migrate {
		if err := database.RunMigrations(cfg.DatabaseURL, migrationsDir); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, pool: pool}
	if err := a.wire(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if opts.warm {
		n, err := a.documents.Warm(ctx)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to load index: %w", err)
		}
		slog.Info("index loaded", "documents", n)
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	docRepo := repository.NewDocumentRepository(a.pool)
	chunkRepo := repository.NewChunkRepository(a.pool)
	a.jobRepo = repository.NewIndexJobRepository(a.pool)
	txRunner := repository.NewTxRunner(a.pool)

	var blobs service.BlobStore
	if cfg.HasS3() {
		s3Client, err := storage.NewSourceStore(ctx, storage.Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		slog.Info("document bucket ready", "bucket", cfg.S3Bucket)
		blobs = s3Client
	}

	embedder := newEmbedder(cfg)
	slog.Info("embedder selected", "embedder", cfg.EmbedderName(), "dimension", cfg.EmbeddingDimension)

	a.index = index.NewMemory()
	a.weights = service.NewWeightCalculator(cfg.Weighting(), nil)

	a.documents = service.NewDocumentService(service.DocumentServiceDeps{
		Documents: docRepo,
		Chunks:    chunkRepo,
		TxRunner:  txRunner,
		Index:     a.index,
		Weights:   a.weights,
		Blobs:     blobs,
	})

	a.indexing = service.NewIndexingService(embedder, docRepo, txRunner, a.index, service.IndexingConfig{
		Chunking:      chunkConfig(cfg.Chunking()),
		Concurrency:   cfg.EmbedConcurrency,
		RatePerSecond: cfg.EmbedRatePerSecond,
		Burst:         cfg.EmbedBurst,
	})
	a.worker = jobs.NewIndexWorker(a.jobRepo, a.indexing)

	retrieval := cfg.Retrieval()
	a.retriever = service.NewRetriever(a.index, embedder, a.weights, retrieval.TopK, retrieval.Timeout)

	a.registry = newRegistry(ctx, cfg)
	a.generation = service.NewGenerationService(a.retriever, a.index, a.registry, service.GenerationConfig{
		ContextBudget: retrieval.ContextBudget,
		MaxTokens:     cfg.GenerationMaxTokens,
		Temperature:   llm.Float(cfg.GenerationTemperature),
	})
	a.letters = service.NewCoverLetterService(service.CoverLetterServiceDeps{
		Letters:    repository.NewCoverLetterRepository(a.pool),
		Generator:  a.generation,
		BatchDelay: cfg.BatchDelay,
	})
	return nil
}

func (a *app) close() {
	a.pool.Close()
}

func newEmbedder(cfg *config.Config) service.EmbeddingClient {
	if cfg.EmbedderName() == "openai" {
		return openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			BaseURL:             cfg.OpenAIBaseURL,
			EmbeddingModel:      goopenai.EmbeddingModel(cfg.OpenAIEmbeddingModel),
			EmbeddingDimensions: cfg.EmbeddingDimension,
		})
	}
	return llm.NewHashEmbedder(cfg.EmbeddingDimension)
}

// newRegistry registers a generator per configured provider key plus the
// template generator, which is also the default when nothing else is.
func newRegistry(ctx context.Context, cfg *config.Config) *llm.Registry {
	var generators []llm.Generator
	if cfg.HasOpenAI() {
		generators = append(generators, openai.NewChatGenerator(cfg.OpenAIAPIKey, cfg.OpenAIChatModel))
	}
	if cfg.HasAnthropic() {
		generators = append(generators, llm.NewAnthropicGenerator(cfg.AnthropicAPIKey, cfg.AnthropicModel))
	}
	if cfg.HasGemini() {
		g, err := llm.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			slog.Warn("gemini generator unavailable", "error", err)
		} else {
			generators = append(generators, g)
		}
	}
	generators = append(generators, llm.TemplateGenerator{})

	defaultName := generators[0].Name()
	for _, g := range generators {
		if g.Name() == cfg.DefaultGenerator {
			defaultName = g.Name()
			break
		}
	}

	registry := llm.NewRegistry(defaultName)
	for _, g := range generators {
		registry.Register(g)
	}
	slog.Info("generators registered", "providers", registry.Names(), "default", defaultName)
	return registry
}

func chunkConfig(c config.ChunkingConfig) service.ChunkConfig {
	cc := service.DefaultChunkConfig()
	cc.MaxChars = c.Size
	cc.Overlap = c.Overlap
	if c.MaxChunks > 0 {
		cc.MaxChunks = c.MaxChunks
	}
	if cc.MinChars > cc.MaxChars {
		cc.MinChars = cc.MaxChars / 2
	}
	return cc
}
