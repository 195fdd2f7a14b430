package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloo-solutions/coverdraft/internal/domain"
	"github.com/cloo-solutions/coverdraft/internal/index"
	"github.com/cloo-solutions/coverdraft/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockGenerator is a mock implementation of llm.Generator
type MockGenerator struct {
	mock.Mock
	name string
}

func (m *MockGenerator) Name() string { return m.name }

func (m *MockGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func newGenerationFixture(gen *MockGenerator) (*GenerationService, *index.Memory, *MockEmbeddingClient) {
	idx := index.NewMemory()
	client := new(MockEmbeddingClient)
	registry := llm.NewRegistry(gen.name)
	registry.Register(gen)
	svc := NewGenerationService(newTestRetriever(idx, client), idx, registry, GenerationConfig{ContextBudget: 4000})
	return svc, idx, client
}

func seedGenerationIndex(idx *index.Memory) {
	putDoc(idx, "cv", domain.DocumentTypeCV, 1, []float32{1, 0})
	letter := domain.NewDocument("cl", "cl.txt", domain.DocumentTypeCoverLetter, letterText, fixedNow)
	letter.CanonicalDate = fixedNow
	letter.Style = ExtractStyle(letterText)
	idx.Put(letter, nil)
}

var backendJob = JobRequest{
	JobTitle:       "Backend Engineer",
	Company:        "Acme",
	JobDescription: "Go and Postgres",
}

func TestJobRequest_Query(t *testing.T) {
	assert.Equal(t, "Backend Engineer Go and Postgres Acme", backendJob.Query())
	assert.Equal(t, "Dev Initech", JobRequest{JobTitle: " Dev ", Company: "Initech"}.Query())
}

func TestGenerationService_Generate(t *testing.T) {
	gen := &MockGenerator{name: "stub"}
	svc, idx, client := newGenerationFixture(gen)
	seedGenerationIndex(idx)

	client.On("GenerateEmbedding", mock.Anything, backendJob.Query()).Return([]float32{1, 0}, nil)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return strings.Contains(req.Prompt, "CRITICAL RULES") &&
			strings.Contains(req.Prompt, "Job Title: Backend Engineer") &&
			strings.Contains(req.Prompt, "[cv | weight") &&
			strings.Contains(req.Prompt, "WRITING STYLE") &&
			req.MaxTokens == defaultGenerationMaxTokens &&
			req.Temperature != nil && *req.Temperature == defaultTemperature &&
			req.System != ""
	})).Return("  Dear Acme team, ...  ", nil)

	res, err := svc.Generate(context.Background(), backendJob)
	require.NoError(t, err)
	assert.Equal(t, "Dear Acme team, ...", res.Letter)
	assert.Equal(t, "stub", res.Provider)
	assert.False(t, res.UsedFallback)
	assert.Len(t, res.Context.Payload.Chunks, 1)
	assert.Equal(t, 1, res.Context.Style.DocumentCount)
	gen.AssertExpectations(t)
}

func TestGenerationService_Generate_FallbackOnError(t *testing.T) {
	gen := &MockGenerator{name: "stub"}
	svc, idx, client := newGenerationFixture(gen)
	seedGenerationIndex(idx)

	client.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)
	gen.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))

	res, err := svc.Generate(context.Background(), backendJob)
	require.NoError(t, err)
	assert.True(t, res.UsedFallback)
	assert.Equal(t, "quota exceeded", res.GeneratorError)
	assert.True(t, strings.HasPrefix(res.Letter, "Dear Hiring Manager,"))
	assert.Contains(t, res.Letter, "Backend Engineer position at Acme")
	assert.Contains(t, res.Letter, "My background includes cv chunk")
}

func TestGenerationService_Generate_FallbackOnEmptyOutput(t *testing.T) {
	gen := &MockGenerator{name: "stub"}
	svc, _, _ := newGenerationFixture(gen)

	gen.On("Generate", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return strings.Contains(req.Prompt, "No documents are available")
	})).Return("   ", nil)

	res, err := svc.Generate(context.Background(), backendJob)
	require.NoError(t, err)
	assert.True(t, res.UsedFallback)
	assert.Empty(t, res.GeneratorError)
	assert.Contains(t, res.Letter, "contribute to your team")
}

func TestGenerationService_Generate_Cancelled(t *testing.T) {
	gen := &MockGenerator{name: "stub"}
	svc, _, _ := newGenerationFixture(gen)
	ctx, cancel := context.WithCancel(context.Background())

	gen.On("Generate", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return("", context.Canceled)

	_, err := svc.Generate(ctx, backendJob)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerationService_Generate_UnknownProvider(t *testing.T) {
	svc, _, _ := newGenerationFixture(&MockGenerator{name: "stub"})

	req := backendJob
	req.Provider = "nope"
	_, err := svc.Generate(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}

func TestGenerationService_Context_Validation(t *testing.T) {
	svc, _, _ := newGenerationFixture(&MockGenerator{name: "stub"})

	_, err := svc.Context(context.Background(), JobRequest{JobTitle: "Dev"})
	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
}

func TestGenerationService_Context_Budget(t *testing.T) {
	svc, idx, client := newGenerationFixture(&MockGenerator{name: "stub"})
	putDoc(idx, "a", domain.DocumentTypeCV, 1, []float32{1, 0})
	putDoc(idx, "b", domain.DocumentTypeOther, 1, []float32{1, 0})
	client.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)

	req := backendJob
	req.Budget = 40
	cr, err := svc.Context(context.Background(), req)
	require.NoError(t, err)
	assert.LessOrEqual(t, cr.Payload.Size, 40)
	assert.Equal(t, 1, cr.Payload.Dropped)
	require.Len(t, cr.Payload.Chunks, 1)
	assert.Equal(t, "a", cr.Payload.Chunks[0].DocumentID)
}

func TestFallbackLetter_TruncatesEvidence(t *testing.T) {
	long := strings.Repeat("word ", 100)
	letter := FallbackLetter(backendJob, []ScoredChunk{
		{DocumentType: domain.DocumentTypeOther, Content: "ignored"},
		{DocumentType: domain.DocumentTypeCV, Content: long},
	})
	assert.Contains(t, letter, "...")
	assert.NotContains(t, letter, "ignored")
	assert.True(t, strings.HasSuffix(letter, "Best regards,\n[Your Name]\n"))
}

func TestGenerationService_ZeroTemperatureKept(t *testing.T) {
	gen := &MockGenerator{name: "stub"}
	idx := index.NewMemory()
	client := new(MockEmbeddingClient)
	registry := llm.NewRegistry(gen.name)
	registry.Register(gen)
	svc := NewGenerationService(newTestRetriever(idx, client), idx, registry,
		GenerationConfig{ContextBudget: 4000, Temperature: llm.Float(0)})
	seedGenerationIndex(idx)

	client.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return req.Temperature != nil && *req.Temperature == 0
	})).Return("Dear Acme team", nil)

	_, err := svc.Generate(context.Background(), backendJob)
	require.NoError(t, err)
	gen.AssertExpectations(t)
}

func TestBuildCoverLetterPrompt_WorkHistory(t *testing.T) {
	exps := []domain.Experience{
		{Title: "Senior Backend Engineer", Company: "Acme Corp", StartDate: "Jan 2021", Current: true, Weight: 2},
		{Title: "Developer", StartDate: "2017", EndDate: "2020", Weight: 1},
		{StartDate: "2015", Weight: 1},
	}

	prompt := BuildCoverLetterPrompt(backendJob, ContextPayload{Text: "ctx"}, exps)
	assert.Contains(t, prompt, "WORK HISTORY")
	assert.Contains(t, prompt, "- Senior Backend Engineer at Acme Corp (Jan 2021 - present)")
	assert.Contains(t, prompt, "- Developer (2017 - 2020)")
	assert.Contains(t, prompt, "- Position (from 2015)")
	assert.Less(t, strings.Index(prompt, "Senior Backend"), strings.Index(prompt, "- Developer"))

	many := make([]domain.Experience, 15)
	for i := range many {
		many[i] = domain.Experience{Title: "Engineer", StartDate: "2010", EndDate: "2011"}
	}
	prompt = BuildCoverLetterPrompt(backendJob, ContextPayload{}, many)
	assert.Equal(t, maxPromptExperiences, strings.Count(prompt, "- Engineer (2010 - 2011)"))

	assert.NotContains(t, BuildCoverLetterPrompt(backendJob, ContextPayload{}, nil), "WORK HISTORY")
}

func TestGenerationService_ContextIncludesExperiences(t *testing.T) {
	gen := &MockGenerator{name: "stub"}
	svc, idx, client := newGenerationFixture(gen)
	cv := cvDoc("cv-1", fixedNow, sampleCV)
	cv.IndexStatus = domain.IndexStatusIndexed
	idx.Put(cv, nil)

	client.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)

	res, err := svc.Context(context.Background(), backendJob)
	require.NoError(t, err)
	require.Len(t, res.Experiences, 2)
	assert.Equal(t, "cv-1", res.Experiences[0].DocumentID)
	assert.Equal(t, 1.0, res.Experiences[0].Weight)
}
