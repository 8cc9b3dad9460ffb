package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/maneifest/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	configHandler := handlers.NewConfigHandler(s.config)
	masksHandler := handlers.NewMasksHandler(s.config, s.segmenter, s.log)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/config", configHandler.Get)

		r.Post("/masks", masksHandler.Create)

		// Capture sessions: the browser runs face detection and posts boxes here.
		r.Post("/sessions", s.sessions.Create)
		r.Post("/sessions/{id}/observe", s.sessions.Observe)
		r.Post("/sessions/{id}/reset", s.sessions.Reset)
		r.Delete("/sessions/{id}", s.sessions.Delete)
	})
}
