package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/coverdraft/internal/api"
	"github.com/cloo-solutions/coverdraft/internal/domain"
	"github.com/cloo-solutions/coverdraft/internal/service"
)

type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]service.ScoredChunk, error)
}

type StyleService interface {
	Style(ctx context.Context) *domain.AggregatedStyle
}

type GenerationService interface {
	Context(ctx context.Context, req service.JobRequest) (*service.ContextResult, error)
	Generate(ctx context.Context, req service.JobRequest) (*service.GenerationResult, error)
}

// ProviderLister reports the registered text generators.
type ProviderLister interface {
	Names() []string
	Default() string
}

type RetrievalHandler struct {
	retriever  Retriever
	styles     StyleService
	generation GenerationService
	providers  ProviderLister
}

func NewRetrievalHandler(retriever Retriever, styles StyleService, generation GenerationService, providers ProviderLister) *RetrievalHandler {
	return &RetrievalHandler{retriever: retriever, styles: styles, generation: generation, providers: providers}
}

type RetrieveRequest struct {
	Query string `json:"query" validate:"required"`
	TopK  int    `json:"top_k" validate:"gte=0,lte=50"`
}

type RetrieveResponse struct {
	Query   string                `json:"query"`
	Results []service.ScoredChunk `json:"results"`
}

type JobRequest struct {
	JobTitle       string `json:"job_title" validate:"required"`
	Company        string `json:"company" validate:"required"`
	JobDescription string `json:"job_description"`
	Tone           string `json:"tone"`
	Provider       string `json:"provider"`
	TopK           int    `json:"top_k" validate:"gte=0,lte=50"`
	Budget         int    `json:"budget" validate:"gte=0"`
}

func (r JobRequest) toService() service.JobRequest {
	return service.JobRequest{
		JobTitle:       r.JobTitle,
		Company:        r.Company,
		JobDescription: r.JobDescription,
		Tone:           r.Tone,
		Provider:       r.Provider,
		TopK:           r.TopK,
		Budget:         r.Budget,
	}
}

func (h *RetrievalHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	results, err := h.retriever.Retrieve(r.Context(), req.Query, req.TopK)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if results == nil {
		results = []service.ScoredChunk{}
	}
	api.Success(w, http.StatusOK, &RetrieveResponse{Query: req.Query, Results: results})
}

func (h *RetrievalHandler) Style(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, h.styles.Style(r.Context()))
}

func (h *RetrievalHandler) Context(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	result, err := h.generation.Context(r.Context(), req.toService())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, result)
}

func (h *RetrievalHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	result, err := h.generation.Generate(r.Context(), req.toService())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, result)
}

func (h *RetrievalHandler) Providers(w http.ResponseWriter, r *http.Request) {
	names := h.providers.Names()
	if names == nil {
		names = []string{}
	}
	api.Success(w, http.StatusOK, map[string]any{
		"providers": names,
		"default":   h.providers.Default(),
	})
}
