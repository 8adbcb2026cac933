package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sevigo/hub2lab/internal/config"
	"github.com/sevigo/hub2lab/internal/core"
	"github.com/sevigo/hub2lab/internal/event"
	"github.com/sevigo/hub2lab/internal/jobs"
	"github.com/sevigo/hub2lab/internal/server/handler"
)

// NewRouter creates and configures a new HTTP router with middleware and API routes.
func NewRouter(cfg *config.Config, dispatcher core.TaskDispatcher, tasks *jobs.Factory, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Configure middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	classifier := event.NewClassifier(cfg.GitHub.WebhookSecret, logger)
	webhookHandler := handler.NewWebhookHandler(cfg, classifier, dispatcher, tasks, logger)
	gitlabHandler := handler.NewGitLabHandler(cfg.GitLab.WebhookSecret, dispatcher, tasks, logger)
	apiHandler := handler.NewAPIHandler(cfg.GitHub.Context, dispatcher, tasks, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhook/github", webhookHandler.Handle)
		r.Post("/webhook/gitlab", gitlabHandler.Handle)
		r.Post("/github_status", apiHandler.GitHubStatus)
		r.Get("/resync/{project}/{pipeline}", apiHandler.Resync)
		r.Get("/info", apiHandler.Info)
	})

	return r
}
