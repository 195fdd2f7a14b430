package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/coverdraft/internal/domain"
	"github.com/cloo-solutions/coverdraft/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCoverLetterService struct {
	mock.Mock
}

func (m *MockCoverLetterService) Generate(ctx context.Context, req service.JobRequest) (*service.SavedLetter, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SavedLetter), args.Error(1)
}

func (m *MockCoverLetterService) Batch(ctx context.Context, req service.BatchRequest) (*service.BatchResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BatchResult), args.Error(1)
}

func (m *MockCoverLetterService) GetByID(ctx context.Context, id string) (*domain.CoverLetter, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CoverLetter), args.Error(1)
}

func (m *MockCoverLetterService) List(ctx context.Context, input service.ListCoverLettersInput) (*service.ListCoverLettersOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListCoverLettersOutput), args.Error(1)
}

func (m *MockCoverLetterService) Update(ctx context.Context, id string, input service.UpdateCoverLetterInput) (*domain.CoverLetter, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CoverLetter), args.Error(1)
}

func (m *MockCoverLetterService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newTestCoverLetter() *domain.CoverLetter {
	l := domain.NewCoverLetter("cl-1", "Backend Engineer", "Acme", "Dear Acme team,", time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC))
	l.Provider = "openai"
	l.DocumentIDs = []string{"doc-1"}
	l.StyleSourceIDs = []string{}
	return l
}

func TestCoverLetterHandler_Create(t *testing.T) {
	svc := new(MockCoverLetterService)
	h := NewCoverLetterHandler(svc)
	svc.On("Generate", mock.Anything, service.JobRequest{JobTitle: "Backend Engineer", Company: "Acme"}).
		Return(&service.SavedLetter{CoverLetter: newTestCoverLetter(), Generation: &service.GenerationResult{Letter: "Dear Acme team,", Provider: "openai"}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/cover-letters", strings.NewReader(`{"job_title":"Backend Engineer","company":"Acme"}`))
	w := httptest.NewRecorder()

	h.Create(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w.Body.Bytes())
	letter := data["cover_letter"].(map[string]interface{})
	assert.Equal(t, "cl-1", letter["id"])
	assert.Equal(t, []interface{}{"doc-1"}, letter["document_ids"])
}

func TestCoverLetterHandler_Create_MissingCompany(t *testing.T) {
	svc := new(MockCoverLetterService)
	h := NewCoverLetterHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/cover-letters", strings.NewReader(`{"job_title":"Dev"}`))
	w := httptest.NewRecorder()

	h.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestCoverLetterHandler_Batch(t *testing.T) {
	svc := new(MockCoverLetterService)
	h := NewCoverLetterHandler(svc)
	svc.On("Batch", mock.Anything, service.BatchRequest{
		JobTitle:  "Dev",
		Companies: []string{"Acme", "Initech"},
		Delay:     1500 * time.Millisecond,
	}).Return(&service.BatchResult{
		Items: []service.BatchItem{
			{Company: "Acme", Status: service.BatchStatusSuccess, CoverLetterID: "cl-1"},
			{Company: "Initech", Status: service.BatchStatusError, Error: "provider down"},
		},
		Total: 2, Succeeded: 1, Failed: 1,
	}, nil)

	body := `{"job_title":"Dev","companies":["Acme","Initech"],"delay_seconds":1.5}`
	w := httptest.NewRecorder()
	h.Batch(w, httptest.NewRequest(http.MethodPost, "/cover-letters/batch", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w.Body.Bytes())
	assert.Equal(t, 1.0, data["succeeded"])
	assert.Equal(t, 1.0, data["failed"])
	assert.Len(t, data["items"], 2)
}

func TestCoverLetterHandler_Batch_Validation(t *testing.T) {
	svc := new(MockCoverLetterService)
	h := NewCoverLetterHandler(svc)

	for _, body := range []string{
		`{"companies":["Acme"]}`,
		`{"job_title":"Dev","companies":[]}`,
		`{"job_title":"Dev","companies":["Acme"],"delay_seconds":-1}`,
	} {
		w := httptest.NewRecorder()
		h.Batch(w, httptest.NewRequest(http.MethodPost, "/cover-letters/batch", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	svc.AssertNotCalled(t, "Batch", mock.Anything, mock.Anything)
}

func TestCoverLetterHandler_List(t *testing.T) {
	svc := new(MockCoverLetterService)
	h := NewCoverLetterHandler(svc)
	svc.On("List", mock.Anything, service.ListCoverLettersInput{Cursor: "abc", Limit: 5}).
		Return(&service.ListCoverLettersOutput{Items: []*domain.CoverLetter{newTestCoverLetter()}, Cursor: "next", HasMore: true}, nil)

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/cover-letters?cursor=abc&limit=5", nil))

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w.Body.Bytes())
	assert.Len(t, data["items"], 1)
	assert.Equal(t, "next", data["cursor"])
	assert.Equal(t, true, data["has_more"])

	w = httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/cover-letters?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCoverLetterHandler_GetNotFound(t *testing.T) {
	svc := new(MockCoverLetterService)
	h := NewCoverLetterHandler(svc)
	svc.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrCoverLetterNotFound)

	w := httptest.NewRecorder()
	h.Get(w, withURLParam(httptest.NewRequest(http.MethodGet, "/cover-letters/missing", nil), "id", "missing"))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCoverLetterHandler_Update(t *testing.T) {
	svc := new(MockCoverLetterService)
	h := NewCoverLetterHandler(svc)
	rated := newTestCoverLetter()
	rated.Rating = 4
	svc.On("Update", mock.Anything, "cl-1", mock.MatchedBy(func(in service.UpdateCoverLetterInput) bool {
		return in.Content == nil && in.Rating != nil && *in.Rating == 4
	})).Return(rated, nil)

	req := withURLParam(httptest.NewRequest(http.MethodPatch, "/cover-letters/cl-1", strings.NewReader(`{"rating":4}`)), "id", "cl-1")
	w := httptest.NewRecorder()
	h.Update(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4.0, decodeData(t, w.Body.Bytes())["rating"])

	req = withURLParam(httptest.NewRequest(http.MethodPatch, "/cover-letters/cl-1", strings.NewReader(`{"rating":9}`)), "id", "cl-1")
	w = httptest.NewRecorder()
	h.Update(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNumberOfCalls(t, "Update", 1)
}

func TestCoverLetterHandler_Delete(t *testing.T) {
	svc := new(MockCoverLetterService)
	h := NewCoverLetterHandler(svc)
	svc.On("Delete", mock.Anything, "cl-1").Return(nil)

	w := httptest.NewRecorder()
	h.Delete(w, withURLParam(httptest.NewRequest(http.MethodDelete, "/cover-letters/cl-1", nil), "id", "cl-1"))

	assert.Equal(t, http.StatusNoContent, w.Code)
}
