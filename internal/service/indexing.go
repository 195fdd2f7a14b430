package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloo-solutions/coverdraft/internal/domain"
	"github.com/cloo-solutions/coverdraft/internal/index"
	"github.com/cloo-solutions/coverdraft/internal/telemetry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// IndexPublisher is the write side of the chunk index used by indexing.
type IndexPublisher interface {
	Publish(doc *domain.Document, chunks []domain.Chunk)
	MarkFailed(id, reason string)
}

// IndexingConfig bounds the embedding fan-out of one document.
type IndexingConfig struct {
	Chunking      ChunkConfig
	Concurrency   int
	RatePerSecond float64
	Burst         int
}

// IndexingService chunks documents and embeds the chunks
type IndexingService struct {
	client      EmbeddingClient
	repo        DocumentRepository
	txRunner    TxRunner
	index       IndexPublisher
	chunkCfg    ChunkConfig
	concurrency int
	limiter     *rate.Limiter
	uuidGen     UUIDGenerator
	now         func() time.Time
	logger      *slog.Logger
}

// NewIndexingService creates a new IndexingService instance
func NewIndexingService(client EmbeddingClient, repo DocumentRepository, txRunner TxRunner, idx IndexPublisher, cfg IndexingConfig) *IndexingService {
	return NewIndexingServiceWithUUIDGen(client, repo, txRunner, idx, cfg, &DefaultUUIDGenerator{})
}

// NewIndexingServiceWithUUIDGen creates a new IndexingService with custom UUID generator (for testing)
func NewIndexingServiceWithUUIDGen(
	client EmbeddingClient,
	repo DocumentRepository,
	txRunner TxRunner,
	idx IndexPublisher,
	cfg IndexingConfig,
	uuidGen UUIDGenerator,
) *IndexingService {
	if cfg.Chunking.MaxChars <= 0 {
		cfg.Chunking = DefaultChunkConfig()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return &IndexingService{
		client:      client,
		repo:        repo,
		txRunner:    txRunner,
		index:       idx,
		chunkCfg:    cfg.Chunking,
		concurrency: cfg.Concurrency,
		limiter:     limiter,
		uuidGen:     uuidGen,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      slog.Default(),
	}
}

// IndexDocument chunks a document, embeds every chunk and publishes the
// result to the index. This method is called by the background worker.
//
// When any chunk fails to embed the document is marked failed, dropped from
// retrieval and an *domain.EmbeddingFailure is returned. Nothing is retried.
// Cancellation of ctx returns ctx.Err() and leaves the document untouched.
func (s *IndexingService) IndexDocument(ctx context.Context, documentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "IndexingService.IndexDocument", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "index",
	})
	defer span.End()

	doc, err := s.repo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	pieces := ChunkText(doc.Content, s.chunkCfg)
	span.SetData("chunks", len(pieces))
	if len(pieces) == 0 {
		return s.fail(ctx, span, doc, domain.ErrEmptyContent)
	}

	embeddings, err := s.embedAll(ctx, pieces)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return s.fail(ctx, span, doc, err)
	}

	createdAt := s.now()
	chunks := make([]domain.Chunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = domain.Chunk{
			ID:         s.uuidGen.NewString(),
			DocumentID: doc.ID,
			Position:   i,
			Content:    text,
			Embedding:  embeddings[i],
			CreatedAt:  createdAt,
		}
	}

	if err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Chunks().ReplaceChunks(ctx, doc.ID, chunks); err != nil {
			return fmt.Errorf("failed to replace chunks: %w", err)
		}
		if err := repos.Documents().UpdateIndexStatus(ctx, doc.ID, domain.IndexStatusIndexed, "", createdAt); err != nil {
			return fmt.Errorf("failed to update index status: %w", err)
		}
		return nil
	}); err != nil {
		span.SetError(err)
		return err
	}

	s.index.Publish(doc, chunks)
	s.logger.Info("document indexed", "document_id", doc.ID, "chunks", len(chunks))
	return nil
}

func (s *IndexingService) embedAll(ctx context.Context, pieces []string) ([][]float32, error) {
	embeddings := make([][]float32, len(pieces))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, text := range pieces {
		g.Go(func() error {
			if s.limiter != nil {
				if err := s.limiter.Wait(gctx); err != nil {
					return err
				}
			}
			vec, err := s.client.GenerateEmbedding(gctx, text)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			if len(vec) == 0 {
				return fmt.Errorf("chunk %d: empty embedding", i)
			}
			embeddings[i] = index.Normalize(vec)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}

func (s *IndexingService) fail(ctx context.Context, span *telemetry.Span, doc *domain.Document, cause error) error {
	failure := domain.NewEmbeddingFailure(doc.ID, cause)
	span.SetError(failure)

	reason := cause.Error()
	if err := s.repo.UpdateIndexStatus(ctx, doc.ID, domain.IndexStatusFailed, reason, s.now()); err != nil {
		s.logger.Error("failed to record index failure", "document_id", doc.ID, "error", err)
	}
	s.index.MarkFailed(doc.ID, reason)

	s.logger.Warn("document excluded from retrieval", "document_id", doc.ID, "error", cause)
	return failure
}

// IsEmbeddingFailure reports whether err carries a per-document embedding failure.
func IsEmbeddingFailure(err error) bool {
	var ef *domain.EmbeddingFailure
	return errors.As(err, &ef)
}
