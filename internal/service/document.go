package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"hash/fnv"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/cloo-solutions/coverdraft/internal/domain"
	"github.com/cloo-solutions/coverdraft/internal/extract"
	"github.com/cloo-solutions/coverdraft/internal/pagination"
	"github.com/cloo-solutions/coverdraft/internal/telemetry"
	"github.com/google/uuid"
)

// UUIDGenerator defines the interface for generating UUIDs
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// BlobStore keeps the original bytes of uploaded documents.
type BlobStore interface {
	PutObject(ctx context.Context, key, contentType string, data []byte) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
	DeleteObject(ctx context.Context, key string) error
}

// DocumentIndex is the in-memory index as seen by the document service.
type DocumentIndex interface {
	Put(doc *domain.Document, chunks []domain.Chunk)
	UpdateDocument(id string, fn func(d *domain.Document)) bool
	Get(id string) (*domain.Document, bool)
	Remove(id string)
	Documents() []*domain.Document
}

// DocumentServiceDeps wires a DocumentService. Blobs, UUIDGen, Now and
// Logger are optional.
type DocumentServiceDeps struct {
	Documents DocumentRepository
	Chunks    ChunkRepository
	TxRunner  TxRunner
	Index     DocumentIndex
	Weights   *WeightCalculator
	Blobs     BlobStore
	UUIDGen   UUIDGenerator
	Now       func() time.Time
	Logger    *slog.Logger
}

// DocumentService ingests documents and manages their weight inputs.
type DocumentService struct {
	repo      DocumentRepository
	chunkRepo ChunkRepository
	txRunner  TxRunner
	index     DocumentIndex
	weights   *WeightCalculator
	blobs     BlobStore
	uuidGen   UUIDGenerator
	now       func() time.Time
	logger    *slog.Logger
	onEnqueue func()

	// weightLocks order the store write and the index write of concurrent
	// manual weight edits, striped by document ID.
	weightLocks [weightLockStripes]sync.Mutex
}

const weightLockStripes = 64

func (s *DocumentService) weightLock(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &s.weightLocks[h.Sum32()%weightLockStripes]
}

// NewDocumentService creates a new DocumentService instance
func NewDocumentService(deps DocumentServiceDeps) *DocumentService {
	s := &DocumentService{
		repo:      deps.Documents,
		chunkRepo: deps.Chunks,
		txRunner:  deps.TxRunner,
		index:     deps.Index,
		weights:   deps.Weights,
		blobs:     deps.Blobs,
		uuidGen:   deps.UUIDGen,
		now:       deps.Now,
		logger:    deps.Logger,
	}
	if s.uuidGen == nil {
		s.uuidGen = &DefaultUUIDGenerator{}
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// NotifyOnEnqueue registers fn to run after an index job is committed.
// Call it before the service is shared between goroutines.
func (s *DocumentService) NotifyOnEnqueue(fn func()) {
	s.onEnqueue = fn
}

func (s *DocumentService) enqueued() {
	if s.onEnqueue != nil {
		s.onEnqueue()
	}
}

// IngestInput describes one uploaded document. Content, when set, is used
// as the document text and Data is only stored as the source blob.
type IngestInput struct {
	Filename     string
	ContentType  string
	Data         []byte
	Content      string
	Type         string
	Company      string
	ManualWeight float64
}

// IngestResult is the stored document and the job queued to index it.
type IngestResult struct {
	Document      *domain.Document
	JobID         string
	WeightClamped bool
	Breakdown     WeightBreakdown
}

// Ingest extracts, classifies and stores a document, then queues it for
// chunking and embedding. The document counts toward style aggregation
// immediately and becomes searchable once indexing succeeds.
func (s *DocumentService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Ingest", telemetry.SpanAttributes{
		Operation: "ingest",
	})
	defer span.End()

	filename := path.Base(strings.ReplaceAll(strings.TrimSpace(input.Filename), "\\", "/"))
	if filename == "." || filename == "/" {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "filename is required", domain.ErrMissingRequiredField)
	}

	content := input.Content
	if strings.TrimSpace(content) == "" {
		text, err := extract.Text(filename, input.ContentType, input.Data)
		if err != nil {
			return nil, err
		}
		content = text
	}
	if strings.TrimSpace(content) == "" {
		return nil, domain.ErrEmptyContent
	}

	info := ParseFilename(filename)
	docType := domain.DocumentTypeOther
	switch {
	case strings.TrimSpace(input.Type) != "":
		t, ok := domain.ParseDocumentType(input.Type)
		if !ok {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation,
				fmt.Sprintf("unknown document type %q", input.Type), domain.ErrInvalidDocumentType)
		}
		docType = t
	case info.TypeKnown:
		docType = info.Type
	}

	now := s.now()
	resolved := ResolveDate(filename, content, now)

	manual, clamped := s.weights.ClampManualWeight(input.ManualWeight)
	if clamped {
		s.logger.Warn("manual weight out of range, clamped",
			"filename", filename, "requested", input.ManualWeight, "applied", manual)
	}

	doc := domain.NewDocument(s.uuidGen.NewString(), filename, docType, content, now)
	doc.CanonicalDate = resolved.Date
	doc.DateSource = resolved.Source
	doc.ManualWeight = manual
	doc.Company = strings.TrimSpace(input.Company)
	if doc.Company == "" {
		doc.Company = info.Company
	}
	doc.Style = ExtractStyle(content)

	if err := domain.ValidateDocument(doc); err != nil {
		return nil, err
	}

	if s.blobs != nil && len(input.Data) > 0 {
		key := buildSourceKey(doc.ID, filename)
		if err := s.blobs.PutObject(ctx, key, input.ContentType, input.Data); err != nil {
			span.SetError(err)
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to store document source", err)
		}
		doc.SourceKey = key
	}

	job := domain.NewIndexJob(s.uuidGen.NewString(), doc.ID, now)
	if err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return fmt.Errorf("failed to create document: %w", err)
		}
		if err := repos.IndexJobs().Create(ctx, job); err != nil {
			return fmt.Errorf("failed to create index job: %w", err)
		}
		return nil
	}); err != nil {
		span.SetError(err)
		s.discardSource(ctx, doc.SourceKey)
		return nil, err
	}

	s.index.Put(doc, nil)
	s.enqueued()

	s.logger.Info("document ingested",
		"document_id", doc.ID, "type", doc.Type, "date_source", doc.DateSource, "job_id", job.ID)

	return &IngestResult{
		Document:      doc,
		JobID:         job.ID,
		WeightClamped: clamped,
		Breakdown:     s.weights.Breakdown(doc),
	}, nil
}

// GetByID retrieves a document by ID
func (s *DocumentService) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.GetByID", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "get",
	})
	defer span.End()

	return s.repo.GetByID(ctx, id)
}

type ListDocumentsInput struct {
	Type   string
	Cursor string
	Limit  int
}

type ListDocumentsOutput struct {
	Items   []*domain.Document
	Cursor  string
	HasMore bool
}

// List returns documents newest first, optionally restricted to one type.
func (s *DocumentService) List(ctx context.Context, input ListDocumentsInput) (*ListDocumentsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.List", telemetry.SpanAttributes{
		Operation: "list",
	})
	defer span.End()

	var docType domain.DocumentType
	if input.Type != "" {
		t, ok := domain.ParseDocumentType(input.Type)
		if !ok {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation,
				fmt.Sprintf("unknown document type %q", input.Type), domain.ErrInvalidDocumentType)
		}
		docType = t
	}

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	result, err := s.repo.ListWithCursor(ctx, docType, cursor, pagination.ClampLimit(input.Limit))
	if err != nil {
		return nil, err
	}

	return &ListDocumentsOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// Delete removes a document, its chunks and its stored source.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Delete", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "delete",
	})
	defer span.End()

	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		span.SetError(err)
		return fmt.Errorf("failed to delete document: %w", err)
	}
	s.index.Remove(id)
	s.discardSource(ctx, doc.SourceKey)

	s.logger.Info("document deleted", "document_id", id)
	return nil
}

// WeightUpdate is the outcome of changing a document's manual weight.
type WeightUpdate struct {
	Document  *domain.Document
	Breakdown WeightBreakdown
	Clamped   bool
}

// SetManualWeight clamps and stores a new manual multiplier. Concurrent edits
// of one document are serialized across both the store and the index, so the
// weight retrieval ranks with is always the last one persisted.
func (s *DocumentService) SetManualWeight(ctx context.Context, id string, weight float64) (*WeightUpdate, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.SetManualWeight", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "set_weight",
	})
	defer span.End()

	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	manual, clamped := s.weights.ClampManualWeight(weight)
	if clamped {
		s.logger.Warn("manual weight out of range, clamped",
			"document_id", id, "requested", weight, "applied", manual)
	}

	mu := s.weightLock(id)
	mu.Lock()
	now := s.now()
	if err := s.repo.UpdateManualWeight(ctx, id, manual, now); err != nil {
		mu.Unlock()
		span.SetError(err)
		return nil, fmt.Errorf("failed to update manual weight: %w", err)
	}
	s.index.UpdateDocument(id, func(d *domain.Document) {
		d.ManualWeight = manual
		d.UpdatedAt = now
	})
	mu.Unlock()

	doc.ManualWeight = manual
	doc.UpdatedAt = now
	return &WeightUpdate{Document: doc, Breakdown: s.weights.Breakdown(doc), Clamped: clamped}, nil
}

// WeightBreakdown reports every factor of a document's current weight.
func (s *DocumentService) WeightBreakdown(ctx context.Context, id string) (*domain.Document, WeightBreakdown, error) {
	if doc, ok := s.index.Get(id); ok {
		return doc, s.weights.Breakdown(doc), nil
	}
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, WeightBreakdown{}, err
	}
	return doc, s.weights.Breakdown(doc), nil
}

// Reindex queues a document for chunking and embedding again. It is the only
// way back into retrieval for a document whose embedding failed. An indexed
// document stays indexed, and its current chunks stay searchable until the
// job publishes the new set.
func (s *DocumentService) Reindex(ctx context.Context, id string) (*domain.IndexJob, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Reindex", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "reindex",
	})
	defer span.End()

	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	resetStatus := doc.IndexStatus != domain.IndexStatusIndexed
	job := domain.NewIndexJob(s.uuidGen.NewString(), id, now)
	if err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if resetStatus {
			if err := repos.Documents().UpdateIndexStatus(ctx, id, domain.IndexStatusPending, "", now); err != nil {
				return fmt.Errorf("failed to reset index status: %w", err)
			}
		}
		if err := repos.IndexJobs().Create(ctx, job); err != nil {
			return fmt.Errorf("failed to create index job: %w", err)
		}
		return nil
	}); err != nil {
		span.SetError(err)
		return nil, err
	}

	if resetStatus {
		updated := s.index.UpdateDocument(id, func(d *domain.Document) {
			d.IndexStatus = domain.IndexStatusPending
			d.IndexError = ""
			d.UpdatedAt = now
		})
		if !updated {
			doc.IndexStatus = domain.IndexStatusPending
			doc.IndexError = ""
			doc.UpdatedAt = now
			s.index.Put(doc, nil)
		}
	}
	s.enqueued()

	s.logger.Info("document queued for reindex", "document_id", id, "job_id", job.ID, "status_reset", resetStatus)
	return job, nil
}

// Style aggregates the writing style of every cover letter currently held.
func (s *DocumentService) Style(ctx context.Context) *domain.AggregatedStyle {
	_, span := telemetry.StartSpan(ctx, "DocumentService.Style", telemetry.SpanAttributes{
		Operation: "style",
	})
	defer span.End()

	return AggregateStyle(s.index.Documents())
}

// Experiences lists the work history found in the held CVs, newest CV first.
func (s *DocumentService) Experiences(ctx context.Context) []domain.Experience {
	_, span := telemetry.StartSpan(ctx, "DocumentService.Experiences", telemetry.SpanAttributes{
		DocumentType: string(domain.DocumentTypeCV),
		Operation:    "experience",
	})
	defer span.End()

	exps := WeightedExperiences(s.index.Documents())
	span.SetData("experiences", len(exps))
	return exps
}

// SourceURL returns a short-lived download link for a document's original upload.
func (s *DocumentService) SourceURL(ctx context.Context, id string) (string, error) {
	if s.blobs == nil {
		return "", domain.NewDomainError(domain.ErrCodeUnavailable, "document storage not configured")
	}
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if doc.SourceKey == "" {
		return "", domain.NewDomainError(domain.ErrCodeNotFound, "document has no stored source")
	}
	url, err := s.blobs.GenerateDownloadURL(ctx, doc.SourceKey)
	if err != nil {
		return "", fmt.Errorf("failed to generate download URL: %w", err)
	}
	return url, nil
}

// Warm loads every stored document and its chunks into the index, oldest
// first, so insertion order survives a restart.
func (s *DocumentService) Warm(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Warm", telemetry.SpanAttributes{
		Operation: "warm",
	})
	defer span.End()

	docs, err := s.repo.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list documents: %w", err)
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		var chunks []domain.Chunk
		if doc.IsSearchable() {
			chunks, err = s.chunkRepo.ListByDocument(ctx, doc.ID)
			if err != nil {
				return 0, fmt.Errorf("failed to load chunks for %s: %w", doc.ID, err)
			}
		}
		if doc.Style == nil {
			doc.Style = ExtractStyle(doc.Content)
		}
		s.index.Put(doc, chunks)
	}

	s.logger.Info("index warmed", "documents", len(docs))
	return len(docs), nil
}

func (s *DocumentService) discardSource(ctx context.Context, key string) {
	if s.blobs == nil || key == "" {
		return
	}
	if err := s.blobs.DeleteObject(ctx, key); err != nil {
		s.logger.Warn("failed to delete document source", "key", key, "error", err)
	}
}

func buildSourceKey(documentID, filename string) string {
	return fmt.Sprintf("documents/%s/%s", documentID, filename)
}

// IsNotFound reports whether err is a NOT_FOUND domain error.
func IsNotFound(err error) bool {
	var de *domain.DomainError
	return errors.As(err, &de) && de.Code == domain.ErrCodeNotFound
}
