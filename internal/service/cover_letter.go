package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloo-solutions/coverdraft/internal/domain"
	"github.com/cloo-solutions/coverdraft/internal/pagination"
	"github.com/cloo-solutions/coverdraft/internal/telemetry"
	"golang.org/x/time/rate"
)

// MaxBatchCompanies bounds one batch request.
const MaxBatchCompanies = 10

// CoverLetterRepository persists the history of generated letters.
type CoverLetterRepository interface {
	Create(ctx context.Context, l *domain.CoverLetter) error
	GetByID(ctx context.Context, id string) (*domain.CoverLetter, error)
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*CoverLetterPageResult, error)
	Update(ctx context.Context, l *domain.CoverLetter) error
	Delete(ctx context.Context, id string) error
}

// CoverLetterPageResult is one page of saved letters, newest first.
type CoverLetterPageResult struct {
	Items      []*domain.CoverLetter
	NextCursor string
	HasMore    bool
}

// LetterGenerator writes a letter without saving it.
type LetterGenerator interface {
	Generate(ctx context.Context, req JobRequest) (*GenerationResult, error)
}

// CoverLetterServiceDeps wires a CoverLetterService. UUIDGen, Now and Logger
// are optional. BatchDelay spaces out generations within a batch.
type CoverLetterServiceDeps struct {
	Letters    CoverLetterRepository
	Generator  LetterGenerator
	UUIDGen    UUIDGenerator
	Now        func() time.Time
	Logger     *slog.Logger
	BatchDelay time.Duration
}

// CoverLetterService generates letters and keeps them for later editing
// and rating.
type CoverLetterService struct {
	repo       CoverLetterRepository
	generator  LetterGenerator
	uuidGen    UUIDGenerator
	now        func() time.Time
	logger     *slog.Logger
	batchDelay time.Duration
}

func NewCoverLetterService(deps CoverLetterServiceDeps) *CoverLetterService {
	s := &CoverLetterService{
		repo:       deps.Letters,
		generator:  deps.Generator,
		uuidGen:    deps.UUIDGen,
		now:        deps.Now,
		logger:     deps.Logger,
		batchDelay: deps.BatchDelay,
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

// SavedLetter is a stored letter together with the generation behind it.
type SavedLetter struct {
	CoverLetter *domain.CoverLetter `json:"cover_letter"`
	Generation  *GenerationResult   `json:"generation"`
}

// Generate writes a cover letter for the job and adds it to the history.
func (s *CoverLetterService) Generate(ctx context.Context, req JobRequest) (*SavedLetter, error) {
	ctx, span := telemetry.StartSpan(ctx, "CoverLetterService.Generate", telemetry.SpanAttributes{
		Provider:  req.Provider,
		Operation: "generate_and_save",
	})
	defer span.End()

	res, err := s.generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	letter := domain.NewCoverLetter(s.uuidGen.NewString(), strings.TrimSpace(req.JobTitle), strings.TrimSpace(req.Company), res.Letter, now)
	letter.JobDescription = strings.TrimSpace(req.JobDescription)
	letter.Tone = strings.TrimSpace(req.Tone)
	letter.Provider = res.Provider
	letter.UsedFallback = res.UsedFallback
	letter.DocumentIDs = contextDocumentIDs(res.Context.Payload.Chunks)
	letter.StyleSourceIDs = []string{}
	if res.Context.Style != nil {
		letter.StyleSourceIDs = append(letter.StyleSourceIDs, res.Context.Style.SourceIDs...)
	}

	if err := domain.ValidateCoverLetter(letter); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, letter); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to save cover letter: %w", err)
	}

	s.logger.Info("cover letter saved",
		"cover_letter_id", letter.ID, "company", letter.Company, "provider", letter.Provider, "used_fallback", letter.UsedFallback)
	return &SavedLetter{CoverLetter: letter, Generation: res}, nil
}

func contextDocumentIDs(chunks []ScoredChunk) []string {
	ids := []string{}
	seen := map[string]bool{}
	for _, c := range chunks {
		if !seen[c.DocumentID] {
			seen[c.DocumentID] = true
			ids = append(ids, c.DocumentID)
		}
	}
	return ids
}

// BatchRequest asks for one letter per company for the same role.
type BatchRequest struct {
	JobTitle       string
	JobDescription string
	Tone           string
	Provider       string
	Companies      []string
	// Delay overrides the configured spacing between generations when positive.
	Delay time.Duration
}

// Batch item statuses.
const (
	BatchStatusSuccess = "success"
	BatchStatusError   = "error"
)

type BatchItem struct {
	Company       string `json:"company"`
	Status        string `json:"status"`
	CoverLetterID string `json:"cover_letter_id,omitempty"`
	UsedFallback  bool   `json:"used_fallback,omitempty"`
	Error         string `json:"error,omitempty"`
}

type BatchResult struct {
	Items     []BatchItem `json:"items"`
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// Batch generates and saves a letter for each company in order. A failure
// for one company is recorded in its item and the batch moves on;
// cancellation stops the batch and is returned as an error.
func (s *CoverLetterService) Batch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "CoverLetterService.Batch", telemetry.SpanAttributes{
		Provider:  req.Provider,
		Operation: "batch",
	})
	defer span.End()

	if strings.TrimSpace(req.JobTitle) == "" {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "job title is required", domain.ErrMissingRequiredField)
	}
	companies := uniqueCompanies(req.Companies)
	if len(companies) == 0 {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "at least one company is required", domain.ErrMissingRequiredField)
	}
	if len(companies) > MaxBatchCompanies {
		return nil, domain.NewDomainError(domain.ErrCodeValidation,
			fmt.Sprintf("at most %d companies per batch, got %d", MaxBatchCompanies, len(companies)))
	}
	span.SetData("companies", len(companies))

	delay := req.Delay
	if delay <= 0 {
		delay = s.batchDelay
	}
	var limiter *rate.Limiter
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}

	result := &BatchResult{Items: make([]BatchItem, 0, len(companies)), Total: len(companies)}
	for _, company := range companies {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				span.SetError(err)
				return nil, fmt.Errorf("batch stopped after %d of %d: %w", len(result.Items), len(companies), err)
			}
		}

		saved, err := s.Generate(ctx, JobRequest{
			JobTitle:       req.JobTitle,
			Company:        company,
			JobDescription: req.JobDescription,
			Tone:           req.Tone,
			Provider:       req.Provider,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				span.SetError(ctxErr)
				return nil, ctxErr
			}
			s.logger.Warn("batch letter failed", "company", company, "error", err)
			result.Items = append(result.Items, BatchItem{Company: company, Status: BatchStatusError, Error: err.Error()})
			result.Failed++
			continue
		}
		result.Items = append(result.Items, BatchItem{
			Company:       company,
			Status:        BatchStatusSuccess,
			CoverLetterID: saved.CoverLetter.ID,
			UsedFallback:  saved.CoverLetter.UsedFallback,
		})
		result.Succeeded++
	}

	s.logger.Info("batch finished", "total", result.Total, "succeeded", result.Succeeded, "failed", result.Failed)
	return result, nil
}

func uniqueCompanies(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, c := range in {
		c = strings.TrimSpace(c)
		key := strings.ToLower(c)
		if c == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// GetByID returns a saved letter.
func (s *CoverLetterService) GetByID(ctx context.Context, id string) (*domain.CoverLetter, error) {
	return s.repo.GetByID(ctx, id)
}

type ListCoverLettersInput struct {
	Cursor string
	Limit  int
}

type ListCoverLettersOutput struct {
	Items   []*domain.CoverLetter
	Cursor  string
	HasMore bool
}

// List returns saved letters newest first.
func (s *CoverLetterService) List(ctx context.Context, input ListCoverLettersInput) (*ListCoverLettersOutput, error) {
	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	page, err := s.repo.ListWithCursor(ctx, cursor, pagination.ClampLimit(input.Limit))
	if err != nil {
		return nil, err
	}
	return &ListCoverLettersOutput{Items: page.Items, Cursor: page.NextCursor, HasMore: page.HasMore}, nil
}

// UpdateCoverLetterInput carries the fields to change; nil leaves a field
// as it is. A zero Rating clears the rating.
type UpdateCoverLetterInput struct {
	Content *string
	Rating  *int
}

// Update edits the content or rating of a saved letter.
func (s *CoverLetterService) Update(ctx context.Context, id string, input UpdateCoverLetterInput) (*domain.CoverLetter, error) {
	ctx, span := telemetry.StartSpan(ctx, "CoverLetterService.Update", telemetry.SpanAttributes{
		Operation: "update_letter",
	})
	defer span.End()

	if input.Content == nil && input.Rating == nil {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "nothing to update")
	}

	letter, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Content != nil {
		letter.Content = strings.TrimSpace(*input.Content)
	}
	if input.Rating != nil {
		letter.Rating = *input.Rating
	}
	if err := domain.ValidateCoverLetter(letter); err != nil {
		return nil, err
	}

	letter.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, letter); err != nil {
		span.SetError(err)
		return nil, err
	}
	return letter, nil
}

// Delete removes a saved letter.
func (s *CoverLetterService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("cover letter deleted", "cover_letter_id", id)
	return nil
}
