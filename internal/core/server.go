// Package core provides the HTTP chassis for the sellerpilot API. It builds
// a chi router, enforces the cross-cutting concerns (panic recovery, request
// IDs, structured logging, auth) and exposes the store, automation and
// scheduler operations as JSON endpoints.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sellerpilot/internal/auth"
	"sellerpilot/internal/config"
	"sellerpilot/internal/scheduler"
	"sellerpilot/internal/store"
	"sellerpilot/internal/types"
)

// RunnerFactory builds per-store automation workers. Each run gets a fresh
// marketplace client so per-run state, notably the quota-error memory,
// starts clean.
type RunnerFactory interface {
	NewUnarchiveRunner(s types.StoreConfig) (scheduler.UnarchiveRunner, error)
	NewPromotionRunner(s types.StoreConfig) (scheduler.PromotionRunner, error)
	TestConnection(ctx context.Context, s types.StoreConfig) error
}

// Authenticator resolves bearer tokens to users. Satisfied by *auth.Service;
// injected as an interface for testability.
type Authenticator interface {
	Authenticate(token string) (types.AuthUser, error)
}

// Server bundles the API dependencies so tests can inject fakes per concern.
type Server struct {
	Config    *config.Config
	Stores    *store.FileStore
	Auth      AuthService
	Scheduler *scheduler.Scheduler
	Runners   RunnerFactory
	Logger    *slog.Logger

	router *chi.Mux
}

// AuthService is the slice of *auth.Service the HTTP layer needs.
type AuthService interface {
	Authenticator
	LoginTelegram(data auth.TelegramAuthData) (auth.Session, error)
	LoginAdmin(token string) (auth.Session, error)
	Logout(sessionID string)
}

// NewServer wires the server and fails fast on missing dependencies. Routes
// are mounted separately so tests can customize registration.
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if deps.Stores == nil {
		return nil, fmt.Errorf("store repository must not be nil")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("auth service must not be nil")
	}
	if deps.Scheduler == nil {
		return nil, fmt.Errorf("scheduler must not be nil")
	}
	if deps.Runners == nil {
		return nil, fmt.Errorf("runner factory must not be nil")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		Config:    cfg,
		Stores:    deps.Stores,
		Auth:      deps.Auth,
		Scheduler: deps.Scheduler,
		Runners:   deps.Runners,
		Logger:    logger,
		router:    chi.NewRouter(),
	}, nil
}

// Deps carries the NewServer dependencies.
type Deps struct {
	Stores    *store.FileStore
	Auth      AuthService
	Scheduler *scheduler.Scheduler
	Runners   RunnerFactory
	Logger    *slog.Logger
}

// Handler returns the router as an http.Handler for ListenAndServe.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router exposes the underlying chi.Mux for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
