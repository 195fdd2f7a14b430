package repository

import (
	"context"
	"errors"

	"github.com/cloo-solutions/coverdraft/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// maxTxAttempts bounds reruns of a unit of work that lost a deadlock or
// serialization conflict, e.g. two workers replacing chunks of one document.
const maxTxAttempts = 3

// TxRunner runs a unit of work (document row, chunks, index job) in one
// read-committed transaction.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// WithTx commits when fn returns nil and rolls back on error or panic. fn
// may run more than once, so it must not have side effects outside the
// transaction.
func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
			return fn(txRepos{tx: tx})
		})
		if !retryableTxError(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

// retryableTxError matches serialization_failure and deadlock_detected.
func retryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

type txRepos struct {
	tx pgx.Tx
}

func (r txRepos) Documents() service.DocumentRepository {
	return NewDocumentRepositoryWithTx(r.tx)
}

func (r txRepos) Chunks() service.ChunkRepository {
	return NewChunkRepositoryWithTx(r.tx)
}

func (r txRepos) IndexJobs() service.IndexJobRepository {
	return NewIndexJobRepositoryWithTx(r.tx)
}
