package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloo-solutions/coverdraft/internal/domain"
	"github.com/cloo-solutions/coverdraft/internal/pagination"
	"github.com/cloo-solutions/coverdraft/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentColumns = `id, filename, type, company, content, canonical_date, date_source, ingested_at,
	manual_weight, style, index_status, index_error, source_key, updated_at`

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	style, err := marshalStyle(d.Style)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		d.ID, d.Filename, d.Type, nullableString(d.Company), d.Content, d.CanonicalDate, d.DateSource, d.IngestedAt,
		d.ManualWeight, style, d.IndexStatus, nullableString(d.IndexError), nullableString(d.SourceKey), d.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	d, err := scanDocument(r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return d, nil
}

// ListWithCursor pages documents newest-ingested first. An empty docType
// lists every type.
func (r *DocumentRepository) ListWithCursor(ctx context.Context, docType domain.DocumentType, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	limit = pagination.ClampLimit(limit)

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+`
			 FROM documents
			 WHERE ($1 = '' OR type = $1) AND (ingested_at, id) < ($2, $3)
			 ORDER BY ingested_at DESC, id DESC
			 LIMIT $4`,
			string(docType), cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+`
			 FROM documents
			 WHERE ($1 = '' OR type = $1)
			 ORDER BY ingested_at DESC, id DESC
			 LIMIT $2`,
			string(docType), limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanDocumentRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.IngestedAt)
	}

	return &service.DocumentPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ListAll returns every document in ingestion order. Used to warm the
// in-memory index at startup.
func (r *DocumentRepository) ListAll(ctx context.Context) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY ingested_at ASC, id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

func (r *DocumentRepository) UpdateManualWeight(ctx context.Context, id string, weight float64, updatedAt time.Time) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET manual_weight = $1, updated_at = $2 WHERE id = $3`,
		weight, updatedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) UpdateIndexStatus(ctx context.Context, id string, status domain.IndexStatus, errMsg string, updatedAt time.Time) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET index_status = $1, index_error = $2, updated_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), updatedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// Delete removes the document; chunks and index jobs cascade.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func marshalStyle(s *domain.StyleProfile) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode style profile: %w", err)
	}
	return b, nil
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var company, indexError, sourceKey *string
	var style []byte
	if err := row.Scan(&d.ID, &d.Filename, &d.Type, &company, &d.Content, &d.CanonicalDate, &d.DateSource, &d.IngestedAt,
		&d.ManualWeight, &style, &d.IndexStatus, &indexError, &sourceKey, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if company != nil {
		d.Company = *company
	}
	if indexError != nil {
		d.IndexError = *indexError
	}
	if sourceKey != nil {
		d.SourceKey = *sourceKey
	}
	if len(style) > 0 {
		var p domain.StyleProfile
		if err := json.Unmarshal(style, &p); err != nil {
			return nil, fmt.Errorf("failed to decode style profile for %s: %w", d.ID, err)
		}
		d.Style = &p
	}
	return &d, nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var results []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}
