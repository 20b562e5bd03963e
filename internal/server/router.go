package server

import (
	"net/http"

	"github.com/HirotoShioi/medical-assistant-ai/internal/api"
	"github.com/HirotoShioi/medical-assistant-ai/internal/api/handlers"
	"github.com/HirotoShioi/medical-assistant-ai/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	APIToken          string
	ResourceHandler   *handlers.ResourceHandler
	RetrieveHandler   *handlers.RetrieveHandler
	SynthesizeHandler *handlers.SynthesizeHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.TokenAuth(cfg.APIToken))

		r.Route("/resources", func(r chi.Router) {
			r.Post("/", cfg.ResourceHandler.Ingest)
			r.Get("/", cfg.ResourceHandler.List)
			r.Get("/{id}", cfg.ResourceHandler.Get)
			r.Delete("/{id}", cfg.ResourceHandler.Delete)
		})

		r.Post("/retrieve", cfg.RetrieveHandler.Retrieve)
		r.Post("/synthesize", cfg.SynthesizeHandler.Synthesize)
	})

	return r
}
