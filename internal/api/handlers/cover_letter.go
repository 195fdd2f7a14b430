package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/cloo-solutions/coverdraft/internal/api"
	"github.com/cloo-solutions/coverdraft/internal/domain"
	"github.com/cloo-solutions/coverdraft/internal/service"
	"github.com/go-chi/chi/v5"
)

type CoverLetterService interface {
	Generate(ctx context.Context, req service.JobRequest) (*service.SavedLetter, error)
	Batch(ctx context.Context, req service.BatchRequest) (*service.BatchResult, error)
	GetByID(ctx context.Context, id string) (*domain.CoverLetter, error)
	List(ctx context.Context, input service.ListCoverLettersInput) (*service.ListCoverLettersOutput, error)
	Update(ctx context.Context, id string, input service.UpdateCoverLetterInput) (*domain.CoverLetter, error)
	Delete(ctx context.Context, id string) error
}

type CoverLetterHandler struct {
	svc CoverLetterService
}

func NewCoverLetterHandler(svc CoverLetterService) *CoverLetterHandler {
	return &CoverLetterHandler{svc: svc}
}

type BatchRequest struct {
	JobTitle       string   `json:"job_title" validate:"required"`
	JobDescription string   `json:"job_description"`
	Tone           string   `json:"tone"`
	Provider       string   `json:"provider"`
	Companies      []string `json:"companies" validate:"required,min=1"`
	DelaySeconds   float64  `json:"delay_seconds" validate:"gte=0,lte=60"`
}

// UpdateCoverLetterRequest edits a saved letter. A rating of 0 clears it.
type UpdateCoverLetterRequest struct {
	Content *string `json:"content,omitempty"`
	Rating  *int    `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
}

type ListCoverLettersResponse struct {
	Items   []*domain.CoverLetter `json:"items"`
	Cursor  string                `json:"cursor,omitempty"`
	HasMore bool                  `json:"has_more"`
}

// Create generates a letter and saves it to the history.
func (h *CoverLetterHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	saved, err := h.svc.Generate(r.Context(), req.toService())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusCreated, saved)
}

func (h *CoverLetterHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	result, err := h.svc.Batch(r.Context(), service.BatchRequest{
		JobTitle:       req.JobTitle,
		JobDescription: req.JobDescription,
		Tone:           req.Tone,
		Provider:       req.Provider,
		Companies:      req.Companies,
		Delay:          time.Duration(req.DelaySeconds * float64(time.Second)),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, result)
}

func (h *CoverLetterHandler) List(w http.ResponseWriter, r *http.Request) {
	input := service.ListCoverLettersInput{Cursor: r.URL.Query().Get("cursor")}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		input.Limit = limit
	}

	out, err := h.svc.List(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	items := out.Items
	if items == nil {
		items = []*domain.CoverLetter{}
	}
	api.Success(w, http.StatusOK, &ListCoverLettersResponse{Items: items, Cursor: out.Cursor, HasMore: out.HasMore})
}

func (h *CoverLetterHandler) Get(w http.ResponseWriter, r *http.Request) {
	letter, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, letter)
}

func (h *CoverLetterHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateCoverLetterRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	letter, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), service.UpdateCoverLetterInput{
		Content: req.Content,
		Rating:  req.Rating,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, letter)
}

func (h *CoverLetterHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
