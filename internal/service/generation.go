package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloo-solutions/coverdraft/internal/domain"
	"github.com/cloo-solutions/coverdraft/internal/llm"
	"github.com/cloo-solutions/coverdraft/internal/telemetry"
)

const (
	defaultGenerationMaxTokens = 700
	defaultTemperature         = 0.7
	fallbackExcerptRunes       = 200
	maxPromptExperiences       = 10
)

// ChunkRetriever ranks indexed chunks against a query.
type ChunkRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]ScoredChunk, error)
}

// StyleSource yields the documents whose cover letters define the style.
type StyleSource interface {
	Documents() []*domain.Document
}

// GenerationConfig holds defaults applied when a request leaves them unset.
type GenerationConfig struct {
	ContextBudget int
	MaxTokens     int
	// Temperature defaults to 0.7 when nil. Zero is kept.
	Temperature *float64
}

// GenerationService assembles weighted context and asks a generator for a
// cover letter.
type GenerationService struct {
	retriever ChunkRetriever
	styles    StyleSource
	registry  *llm.Registry
	cfg       GenerationConfig
	logger    *slog.Logger
}

// NewGenerationService creates a new GenerationService instance
func NewGenerationService(retriever ChunkRetriever, styles StyleSource, registry *llm.Registry, cfg GenerationConfig) *GenerationService {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultGenerationMaxTokens
	}
	if cfg.Temperature == nil {
		cfg.Temperature = llm.Float(defaultTemperature)
	}
	return &GenerationService{
		retriever: retriever,
		styles:    styles,
		registry:  registry,
		cfg:       cfg,
		logger:    slog.Default(),
	}
}

// JobRequest describes the position a cover letter is written for.
type JobRequest struct {
	JobTitle       string
	Company        string
	JobDescription string
	Tone           string
	Provider       string
	TopK           int
	Budget         int
}

// Query is the retrieval text for the job.
func (r JobRequest) Query() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.JobTitle, r.JobDescription, r.Company} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func (r JobRequest) validate() error {
	if strings.TrimSpace(r.JobTitle) == "" || strings.TrimSpace(r.Company) == "" {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "job title and company are required", domain.ErrMissingRequiredField)
	}
	return nil
}

// ContextResult is the assembled generation context for a job.
type ContextResult struct {
	Query       string                  `json:"query"`
	Style       *domain.AggregatedStyle `json:"style"`
	Experiences []domain.Experience     `json:"experiences"`
	Payload     ContextPayload          `json:"payload"`
}

// GenerationResult is a generated cover letter and the context behind it.
type GenerationResult struct {
	Letter         string        `json:"letter"`
	Provider       string        `json:"provider"`
	UsedFallback   bool          `json:"used_fallback"`
	GeneratorError string        `json:"generator_error,omitempty"`
	Prompt         string        `json:"-"`
	Context        ContextResult `json:"context"`
}

// Context retrieves weighted chunks for the job and fits them, with the
// aggregated style summary, into the context budget.
func (s *GenerationService) Context(ctx context.Context, req JobRequest) (*ContextResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "GenerationService.Context", telemetry.SpanAttributes{
		Operation: "context",
	})
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, err
	}

	query := req.Query()
	chunks, err := s.retriever.Retrieve(ctx, query, req.TopK)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	docs := s.styles.Documents()
	style := AggregateStyle(docs)

	budget := req.Budget
	if budget <= 0 {
		budget = s.cfg.ContextBudget
	}

	return &ContextResult{
		Query:       query,
		Style:       style,
		Experiences: WeightedExperiences(docs),
		Payload:     AssembleContext(chunks, style, budget),
	}, nil
}

// Generate writes a cover letter for the job. When the selected generator
// fails or returns nothing a template letter is produced instead; the
// failure is reported in the result rather than as an error. Cancellation
// is always returned as an error.
func (s *GenerationService) Generate(ctx context.Context, req JobRequest) (*GenerationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "GenerationService.Generate", telemetry.SpanAttributes{
		Provider:  req.Provider,
		Operation: "generate",
	})
	defer span.End()

	gen, err := s.registry.Get(req.Provider)
	if err != nil {
		return nil, err
	}

	cr, err := s.Context(ctx, req)
	if err != nil {
		return nil, err
	}

	prompt := BuildCoverLetterPrompt(req, cr.Payload, cr.Experiences)
	result := &GenerationResult{Provider: gen.Name(), Prompt: prompt, Context: *cr}

	letter, genErr := gen.Generate(ctx, llm.Request{
		System:      coverLetterSystemPrompt,
		Prompt:      prompt,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if genErr != nil && (errors.Is(genErr, context.Canceled) || errors.Is(genErr, context.DeadlineExceeded)) {
		return nil, genErr
	}

	letter = strings.TrimSpace(letter)
	if genErr != nil || letter == "" {
		if genErr != nil {
			result.GeneratorError = genErr.Error()
			s.logger.Warn("generator failed, using template letter", "provider", gen.Name(), "error", genErr)
		} else {
			s.logger.Warn("generator returned no text, using template letter", "provider", gen.Name())
		}
		result.Letter = FallbackLetter(req, cr.Payload.Chunks)
		result.UsedFallback = true
		return result, nil
	}

	result.Letter = letter
	return result, nil
}

const coverLetterSystemPrompt = "You are an expert career assistant who writes truthful, specific cover letters."

// BuildCoverLetterPrompt renders the user prompt for a job and its context.
// Work history is listed newest CV first, at most ten positions.
func BuildCoverLetterPrompt(req JobRequest, payload ContextPayload, experiences []domain.Experience) string {
	tone := strings.TrimSpace(req.Tone)
	if tone == "" {
		tone = "professional"
	}

	var b strings.Builder
	b.WriteString("Write a cover letter for the following job application.\n\n")
	b.WriteString("CRITICAL RULES - YOU MUST FOLLOW THESE:\n")
	b.WriteString("1. ONLY use the experience and information in the context below\n")
	b.WriteString("2. DO NOT fabricate, invent, or add any experience that is not listed\n")
	b.WriteString("3. DO NOT mention companies, projects, or achievements unless the context contains them\n")
	b.WriteString("4. If the context holds no relevant experience, focus on transferable skills and motivation\n")
	b.WriteString("5. Be honest and authentic; do not exaggerate\n")
	b.WriteString("6. Follow the writing style notes when present so the letter sounds like the applicant\n\n")

	fmt.Fprintf(&b, "Job Title: %s\n", strings.TrimSpace(req.JobTitle))
	fmt.Fprintf(&b, "Company: %s\n", strings.TrimSpace(req.Company))
	if d := strings.TrimSpace(req.JobDescription); d != "" {
		fmt.Fprintf(&b, "Job Description: %s\n", d)
	}
	fmt.Fprintf(&b, "Tone: %s\n\n", tone)

	if payload.Text != "" {
		b.WriteString("CONTEXT FROM THE APPLICANT'S DOCUMENTS (higher weight means more relevant and more recent):\n")
		b.WriteString(payload.Text)
		b.WriteString("\n\n")
	} else {
		b.WriteString("No documents are available; keep the letter general and do not invent experience.\n\n")
	}

	if len(experiences) > 0 {
		b.WriteString("WORK HISTORY FROM THE APPLICANT'S CVS (most recent CV first):\n")
		for i, e := range experiences {
			if i == maxPromptExperiences {
				break
			}
			b.WriteString(formatExperience(e))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Keep it to one page. Make concrete connections between the applicant's background and the job.\n\n")
	b.WriteString("Cover Letter:\n")
	return b.String()
}

// FallbackLetter is the template used when no generator output is available.
// It quotes the best-ranked CV or profile chunk when there is one.
func FallbackLetter(req JobRequest, chunks []ScoredChunk) string {
	title := strings.TrimSpace(req.JobTitle)
	company := strings.TrimSpace(req.Company)

	var evidence string
	for _, c := range chunks {
		if c.DocumentType == domain.DocumentTypeCV || c.DocumentType == domain.DocumentTypeLinkedIn {
			evidence = strings.Join(strings.Fields(c.Content), " ")
			break
		}
	}

	var b strings.Builder
	b.WriteString("Dear Hiring Manager,\n\n")
	fmt.Fprintf(&b, "I am writing to express my interest in the %s position at %s.\n\n", title, company)
	if evidence != "" {
		excerpt := truncateRunes(evidence, fallbackExcerptRunes)
		if runeLen(evidence) > fallbackExcerptRunes {
			excerpt += "..."
		}
		fmt.Fprintf(&b, "My background includes %s\n\n", excerpt)
		fmt.Fprintf(&b, "I am excited about the opportunity to contribute to %s and would welcome the chance to discuss how my experience fits this role.\n\n", company)
		b.WriteString("Thank you for considering my application. I look forward to speaking with you.\n\n")
	} else {
		b.WriteString("I am excited about the opportunity to contribute to your team and believe my background would be a great fit for this role.\n\n")
		b.WriteString("Thank you for considering my application.\n\n")
	}
	b.WriteString("Best regards,\n[Your Name]\n")
	return b.String()
}

func formatExperience(e domain.Experience) string {
	title := e.Title
	if title == "" {
		title = "Position"
	}
	if e.Company != "" {
		title += " at " + e.Company
	}
	end := e.EndDate
	if e.Current {
		end = "present"
	}
	if end == "" {
		return fmt.Sprintf("- %s (from %s)", title, e.StartDate)
	}
	return fmt.Sprintf("- %s (%s - %s)", title, e.StartDate, end)
}
