package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"standupbot/api"
	"standupbot/worker"
)

func SetupRouter(h *api.Handler, signingSecret string, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(api.VerifySignature(signingSecret, log))
		r.Post("/slack/events", h.Events)
		r.Post("/slack/commands", h.Commands)
		r.Post("/slack/interactions", h.Interactions)
		r.Post(worker.EventsPath, h.WorkerEvents)
	})

	return r
}
