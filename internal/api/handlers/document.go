package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cloo-solutions/coverdraft/internal/api"
	"github.com/cloo-solutions/coverdraft/internal/domain"
	"github.com/cloo-solutions/coverdraft/internal/service"
	"github.com/go-chi/chi/v5"
)

type DocumentService interface {
	Ingest(ctx context.Context, input service.IngestInput) (*service.IngestResult, error)
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error)
	Delete(ctx context.Context, id string) error
	SetManualWeight(ctx context.Context, id string, weight float64) (*service.WeightUpdate, error)
	WeightBreakdown(ctx context.Context, id string) (*domain.Document, service.WeightBreakdown, error)
	Reindex(ctx context.Context, id string) (*domain.IndexJob, error)
	SourceURL(ctx context.Context, id string) (string, error)
	Experiences(ctx context.Context) []domain.Experience
}

// Weigher computes the current weight of a document.
type Weigher interface {
	ComputeWeight(doc *domain.Document) float64
}

type DocumentHandler struct {
	svc            DocumentService
	weights        Weigher
	maxUploadBytes int64
}

func NewDocumentHandler(svc DocumentService, weights Weigher, maxUploadBytes int64) *DocumentHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &DocumentHandler{svc: svc, weights: weights, maxUploadBytes: maxUploadBytes}
}

// IngestDocumentRequest is the JSON form of an upload. Content is plain text.
type IngestDocumentRequest struct {
	Filename     string  `json:"filename" validate:"required"`
	Content      string  `json:"content" validate:"required"`
	Type         string  `json:"type" validate:"omitempty,oneof=cv resume cover_letter cover-letter coverletter linkedin profile other"`
	Company      string  `json:"company"`
	ManualWeight float64 `json:"manual_weight" validate:"gte=0"`
}

type SetWeightRequest struct {
	ManualWeight *float64 `json:"manual_weight" validate:"required,gt=0"`
}

type DocumentResponse struct {
	ID            string  `json:"id"`
	Filename      string  `json:"filename"`
	Type          string  `json:"type"`
	Company       string  `json:"company,omitempty"`
	Content       string  `json:"content,omitempty"`
	CanonicalDate string  `json:"canonical_date"`
	DateSource    string  `json:"date_source"`
	IngestedAt    string  `json:"ingested_at"`
	ManualWeight  float64 `json:"manual_weight"`
	Weight        float64 `json:"weight"`
	IndexStatus   string  `json:"index_status"`
	IndexError    string  `json:"index_error,omitempty"`
	HasSource     bool    `json:"has_source"`
	UpdatedAt     string  `json:"updated_at"`
}

type IngestResponse struct {
	Document      *DocumentResponse       `json:"document"`
	JobID         string                  `json:"job_id"`
	WeightClamped bool                    `json:"weight_clamped"`
	Breakdown     service.WeightBreakdown `json:"breakdown"`
}

type ListDocumentsResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

type WeightResponse struct {
	DocumentID string                  `json:"document_id"`
	Clamped    bool                    `json:"clamped,omitempty"`
	Breakdown  service.WeightBreakdown `json:"breakdown"`
}

func (h *DocumentHandler) toResponse(d *domain.Document, withContent bool) *DocumentResponse {
	resp := &DocumentResponse{
		ID:            d.ID,
		Filename:      d.Filename,
		Type:          string(d.Type),
		Company:       d.Company,
		CanonicalDate: d.CanonicalDate.Format("2006-01-02"),
		DateSource:    string(d.DateSource),
		IngestedAt:    d.IngestedAt.UTC().Format(time.RFC3339),
		ManualWeight:  d.ManualWeight,
		IndexStatus:   string(d.IndexStatus),
		IndexError:    d.IndexError,
		HasSource:     d.SourceKey != "",
		UpdatedAt:     d.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if withContent {
		resp.Content = d.Content
	}
	if h.weights != nil {
		resp.Weight = h.weights.ComputeWeight(d)
	}
	return resp
}

// Create accepts either a multipart upload (file, type, company,
// manual_weight) or a JSON body with the text inline.
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var input service.IngestInput
	var err error
	if mediaType == "multipart/form-data" {
		input, err = h.multipartInput(r)
	} else {
		input, err = jsonInput(r)
	}
	if err != nil {
		api.HandleError(w, err)
		return
	}

	result, err := h.svc.Ingest(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, &IngestResponse{
		Document:      h.toResponse(result.Document, false),
		JobID:         result.JobID,
		WeightClamped: result.WeightClamped,
		Breakdown:     result.Breakdown,
	})
}

func jsonInput(r *http.Request) (service.IngestInput, error) {
	var req IngestDocumentRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		return service.IngestInput{}, err
	}
	return service.IngestInput{
		Filename:     req.Filename,
		ContentType:  "text/plain",
		Data:         []byte(req.Content),
		Content:      req.Content,
		Type:         req.Type,
		Company:      req.Company,
		ManualWeight: req.ManualWeight,
	}, nil
}

func (h *DocumentHandler) multipartInput(r *http.Request) (service.IngestInput, error) {
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return service.IngestInput{}, domain.ErrBodyTooLarge
		}
		return service.IngestInput{}, invalid("invalid multipart form")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return service.IngestInput{}, invalid("file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		return service.IngestInput{}, invalid("failed to read upload")
	}
	if int64(len(data)) > h.maxUploadBytes {
		return service.IngestInput{}, domain.ErrBodyTooLarge
	}

	var manual float64
	if raw := strings.TrimSpace(r.FormValue("manual_weight")); raw != "" {
		manual, err = strconv.ParseFloat(raw, 64)
		if err != nil || manual < 0 {
			return service.IngestInput{}, invalid("manual_weight must be a non-negative number")
		}
	}

	return service.IngestInput{
		Filename:     header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		Data:         data,
		Type:         r.FormValue("type"),
		Company:      r.FormValue("company"),
		ManualWeight: manual,
	}, nil
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	input := service.ListDocumentsInput{
		Type:   r.URL.Query().Get("type"),
		Cursor: r.URL.Query().Get("cursor"),
	}
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

	items := make([]*DocumentResponse, 0, len(out.Items))
	for _, d := range out.Items {
		items = append(items, h.toResponse(d, false))
	}
	api.Success(w, http.StatusOK, &ListDocumentsResponse{Items: items, Cursor: out.Cursor, HasMore: out.HasMore})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, h.toResponse(doc, true))
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) GetWeight(w http.ResponseWriter, r *http.Request) {
	doc, breakdown, err := h.svc.WeightBreakdown(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, &WeightResponse{DocumentID: doc.ID, Breakdown: breakdown})
}

func (h *DocumentHandler) SetWeight(w http.ResponseWriter, r *http.Request) {
	var req SetWeightRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	update, err := h.svc.SetManualWeight(r.Context(), chi.URLParam(r, "id"), *req.ManualWeight)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, &WeightResponse{
		DocumentID: update.Document.ID,
		Clamped:    update.Clamped,
		Breakdown:  update.Breakdown,
	})
}

func (h *DocumentHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Reindex(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusAccepted, map[string]string{
		"document_id": job.DocumentID,
		"job_id":      job.ID,
		"status":      string(job.Status),
	})
}

func (h *DocumentHandler) Source(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.SourceURL(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]string{"url": url})
}

func invalid(message string) error {
	return domain.NewDomainError(domain.ErrCodeValidation, message)
}

// Experience lists the work history extracted from the held CVs.
func (h *DocumentHandler) Experience(w http.ResponseWriter, r *http.Request) {
	exps := h.svc.Experiences(r.Context())
	if exps == nil {
		exps = []domain.Experience{}
	}
	api.Success(w, http.StatusOK, map[string]any{"experiences": exps})
}
