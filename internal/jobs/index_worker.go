package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloo-solutions/coverdraft/internal/domain"
)

// DefaultBatchSize is the number of jobs claimed per poll
const DefaultBatchSize = 20

// IndexJobRepository defines the interface for index job persistence
type IndexJobRepository interface {
	// ClaimPending moves up to limit pending jobs to processing and returns them
	ClaimPending(ctx context.Context, limit int) ([]*domain.IndexJob, error)

	// UpdateStatus updates the status of an index job
	UpdateStatus(ctx context.Context, id string, status domain.IndexJobStatus, errMsg string) error
}

// Indexer chunks and embeds one document
type Indexer interface {
	IndexDocument(ctx context.Context, documentID string) error
}

// IndexWorker processes index jobs. A failed job is not retried; the
// document stays out of retrieval until it is explicitly re-indexed.
type IndexWorker struct {
	repo      IndexJobRepository
	indexer   Indexer
	batchSize int
	logger    *slog.Logger
}

// NewIndexWorker creates a new IndexWorker instance
func NewIndexWorker(repo IndexJobRepository, indexer Indexer) *IndexWorker {
	return &IndexWorker{
		repo:      repo,
		indexer:   indexer,
		batchSize: DefaultBatchSize,
		logger:    slog.Default().With("component", "index_worker"),
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IndexWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.ClaimPending(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	w.logger.Info("processing index jobs", "count", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			w.logger.Error("error processing job", "job_id", job.ID, "error", err)
		}
	}

	return nil
}

func (w *IndexWorker) processJob(ctx context.Context, job *domain.IndexJob) error {
	if job.DocumentID == "" {
		return w.repo.UpdateStatus(ctx, job.ID, domain.IndexJobStatusFailed, "job has no document_id")
	}

	w.logger.Debug("processing job", "job_id", job.ID, "document_id", job.DocumentID)
	err := w.indexer.IndexDocument(ctx, job.DocumentID)
	if err == nil {
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.IndexJobStatusCompleted, ""); err != nil {
			return fmt.Errorf("failed to update job status to completed: %w", err)
		}
		w.logger.Info("job completed", "job_id", job.ID, "document_id", job.DocumentID)
		return nil
	}

	// Shutdown interrupted the job; hand it back so the next run picks it up.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if uerr := w.repo.UpdateStatus(context.WithoutCancel(ctx), job.ID, domain.IndexJobStatusPending, ""); uerr != nil {
			return fmt.Errorf("failed to release interrupted job: %w", uerr)
		}
		return err
	}

	w.logger.Warn("job failed", "job_id", job.ID, "document_id", job.DocumentID, "error", err)
	if uerr := w.repo.UpdateStatus(ctx, job.ID, domain.IndexJobStatusFailed, err.Error()); uerr != nil {
		return fmt.Errorf("failed to update job status to failed: %w", uerr)
	}
	return nil
}
