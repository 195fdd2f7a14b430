package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/coverdraft/internal/domain"
	"github.com/cloo-solutions/coverdraft/internal/pagination"
)

// DocumentRepository persists documents and their weight inputs.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListWithCursor(ctx context.Context, docType domain.DocumentType, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	ListAll(ctx context.Context) ([]*domain.Document, error)
	UpdateManualWeight(ctx context.Context, id string, weight float64, updatedAt time.Time) error
	UpdateIndexStatus(ctx context.Context, id string, status domain.IndexStatus, errMsg string, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// DocumentPageResult is one page of documents ordered by ingestion time, newest first.
type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// ChunkRepository persists chunk text and embeddings.
type ChunkRepository interface {
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error
	ListByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error)
}

// IndexJobRepository queues documents for chunking and embedding.
type IndexJobRepository interface {
	Create(ctx context.Context, job *domain.IndexJob) error
	ClaimPending(ctx context.Context, limit int) ([]*domain.IndexJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.IndexJobStatus, errMsg string) error
}

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	Documents() DocumentRepository
	Chunks() ChunkRepository
	IndexJobs() IndexJobRepository
}

// TxRunner executes a function within a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
