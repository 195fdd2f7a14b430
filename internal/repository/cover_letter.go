package repository

import (
	"context"
	"errors"

	"github.com/cloo-solutions/coverdraft/internal/domain"
	"github.com/cloo-solutions/coverdraft/internal/pagination"
	"github.com/cloo-solutions/coverdraft/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const coverLetterColumns = `id, job_title, company, job_description, tone, content, provider, used_fallback,
	document_ids, style_source_ids, rating, created_at, updated_at`

type CoverLetterRepository struct {
	db dbtx
}

func NewCoverLetterRepository(pool *pgxpool.Pool) *CoverLetterRepository {
	return &CoverLetterRepository{db: pool}
}

func (r *CoverLetterRepository) Create(ctx context.Context, l *domain.CoverLetter) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO cover_letters (`+coverLetterColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		l.ID, l.JobTitle, l.Company, nullableString(l.JobDescription), nullableString(l.Tone), l.Content, l.Provider, l.UsedFallback,
		nonNil(l.DocumentIDs), nonNil(l.StyleSourceIDs), nullableRating(l.Rating), l.CreatedAt, l.UpdatedAt,
	)
	return err
}

func (r *CoverLetterRepository) GetByID(ctx context.Context, id string) (*domain.CoverLetter, error) {
	l, err := scanCoverLetter(r.db.QueryRow(ctx,
		`SELECT `+coverLetterColumns+` FROM cover_letters WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCoverLetterNotFound
		}
		return nil, err
	}
	return l, nil
}

// ListWithCursor pages saved letters newest first.
func (r *CoverLetterRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.CoverLetterPageResult, error) {
	limit = pagination.ClampLimit(limit)

	var rows pgx.Rows
	var err error
	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+coverLetterColumns+`
			 FROM cover_letters
			 WHERE (created_at, id) < ($1, $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+coverLetterColumns+`
			 FROM cover_letters
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.CoverLetter
	for rows.Next() {
		l, err := scanCoverLetter(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}
	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}

	return &service.CoverLetterPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// Update stores the editable fields: content and rating.
func (r *CoverLetterRepository) Update(ctx context.Context, l *domain.CoverLetter) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE cover_letters SET content = $1, rating = $2, updated_at = $3 WHERE id = $4`,
		l.Content, nullableRating(l.Rating), l.UpdatedAt, l.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrCoverLetterNotFound
	}
	return nil
}

func (r *CoverLetterRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM cover_letters WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrCoverLetterNotFound
	}
	return nil
}

func scanCoverLetter(row pgx.Row) (*domain.CoverLetter, error) {
	var l domain.CoverLetter
	var description, tone *string
	var rating *int16
	if err := row.Scan(&l.ID, &l.JobTitle, &l.Company, &description, &tone, &l.Content, &l.Provider, &l.UsedFallback,
		&l.DocumentIDs, &l.StyleSourceIDs, &rating, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	if description != nil {
		l.JobDescription = *description
	}
	if tone != nil {
		l.Tone = *tone
	}
	if rating != nil {
		l.Rating = int(*rating)
	}
	return &l, nil
}

func nullableRating(r int) *int16 {
	if r == 0 {
		return nil
	}
	v := int16(r)
	return &v
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
