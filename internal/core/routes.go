package core

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// defaultRedactedHeaders lists header names whose values are masked in
// request logs.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
}

// MountRoutes registers the global middleware chain and the v1 API surface.
// The ordering matters: Recoverer first so every later failure is caught,
// RequestID before the logger so log lines carry the correlation ID, and
// auth only on the protected group.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware([]string{"*"}))

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/auth/telegram/login", s.handleTelegramLogin)
		r.Post("/auth/admin/login", s.handleAdminLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.AuthMiddleware)

			r.Get("/auth/me", s.handleMe)
			r.Post("/auth/logout", s.handleLogout)

			r.Get("/stores", s.handleListStores)
			r.Post("/stores", s.handleCreateStore)
			r.Put("/stores/{name}", s.handleUpdateStore)
			r.Delete("/stores/{name}", s.handleDeleteStore)
			r.Post("/stores/{name}/test-connection", s.handleTestConnection)
			r.Post("/stores/test-connections", s.handleTestAllConnections)

			r.Post("/archive/unarchive", s.handleUnarchive)
			r.Post("/promotions/remove", s.handlePromotionCleanup)

			r.Get("/schedule/status", s.handleScheduleStatus)
			r.Post("/schedule/reload", s.handleScheduleReload)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, map[string]string{
		"status":      "ok",
		"environment": s.Config.Environment,
	})
}
