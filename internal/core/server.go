// Package core provides the API chassis for the CaptionFlow ledger service:
// a chi router with cross-cutting concerns (request IDs, logging, panic
// recovery, error envelopes) enforced before requests reach domain handlers.
package core

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"captionflow/internal/config"
)

// Server encapsulates the HTTP chassis dependencies, allowing injection
// during testing and distinct configuration per environment.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// V1RouteRegistrars are mounted under /v1 when MountRoutes runs.
	V1RouteRegistrars []func(chi.Router)

	router *chi.Mux
}

// NewServer initializes the chassis. The caller mounts domain routes via
// V1RouteRegistrars and MountRoutes after construction; this separation lets
// tests customize route registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(),
		router:    chi.NewRouter(),
	}, nil
}

// MountRoutes wires the middleware chain and all registered routes.
// Recoverer is outermost so every panic in the chain is caught.
func (s *Server) MountRoutes() {
	s.router.Use(Recoverer(s.Logger))
	s.router.Use(RequestID)
	s.router.Use(RequestLogger(s.Logger))

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/v1", func(r chi.Router) {
		for _, register := range s.V1RouteRegistrars {
			register(r)
		}
	})
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth is a liveness probe. It deliberately does not check the
// durable store: the ledger keeps serving from the cache when the store is
// down, so store health is not service health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
