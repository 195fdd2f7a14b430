package server

import (
	"log/slog"
	"net/http"

	"github.com/cloo-solutions/coverdraft/internal/api"
	"github.com/cloo-solutions/coverdraft/internal/api/handlers"
	"github.com/cloo-solutions/coverdraft/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	APITokens        []string
	MaxUploadBytes   int64
	MaxJSONBytes     int64
	Logger           *slog.Logger
	DocumentHandler  *handlers.DocumentHandler
	RetrievalHandler *handlers.RetrievalHandler
	LetterHandler    *handlers.CoverLetterHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	uploadLimit := cfg.MaxUploadBytes
	if uploadLimit <= 0 {
		uploadLimit = 10 << 20
	}
	jsonLimit := cfg.MaxJSONBytes
	if jsonLimit <= 0 {
		jsonLimit = uploadLimit
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.BodyLimit(uploadLimit, jsonLimit))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerToken(cfg.APITokens...))

		r.Get("/providers", cfg.RetrievalHandler.Providers)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Create)
			r.Get("/", cfg.DocumentHandler.List)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
			r.Get("/{id}/weight", cfg.DocumentHandler.GetWeight)
			r.Patch("/{id}/weight", cfg.DocumentHandler.SetWeight)
			r.Post("/{id}/reindex", cfg.DocumentHandler.Reindex)
			r.Get("/{id}/source", cfg.DocumentHandler.Source)
		})

		r.Post("/retrieve", cfg.RetrievalHandler.Retrieve)
		r.Get("/style", cfg.RetrievalHandler.Style)
		r.Post("/context", cfg.RetrievalHandler.Context)
		r.Get("/experience", cfg.DocumentHandler.Experience)

		r.Route("/cover-letters", func(r chi.Router) {
			r.Post("/generate", cfg.RetrievalHandler.Generate)
			r.Post("/", cfg.LetterHandler.Create)
			r.Get("/", cfg.LetterHandler.List)
			r.Post("/batch", cfg.LetterHandler.Batch)
			r.Get("/{id}", cfg.LetterHandler.Get)
			r.Patch("/{id}", cfg.LetterHandler.Update)
			r.Delete("/{id}", cfg.LetterHandler.Delete)
		})
	})

	return r
}
