// Package api serves filtered entity listings over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fy0/filterable"
	"github.com/fy0/filterable/filter"
	"github.com/fy0/filterable/store"
)

type Server struct {
	cfg    Config
	logger *slog.Logger
	engine *filter.Engine
	store  store.Store
	rbac   *filterable.RBAC[string]
}

// NewServer returns a server listing entities of engine's oracle from st.
// With a non-nil rbac, fields are gated per request roles and row scopes
// granted by the "list:<entity>" permission are applied.
func NewServer(cfg Config, logger *slog.Logger, engine *filter.Engine, st store.Store, rbac *filterable.RBAC[string]) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if engine == nil || st == nil {
		return nil, errors.New("engine and store are required")
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		engine: engine,
		store:  st,
		rbac:   rbac,
	}, nil
}

// Handler returns the routes wrapped in the server middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/healthcheck", s.healthCheckHandler)
	mux.HandleFunc("GET /api/entities/{entity}", s.listHandler)
	mux.HandleFunc("GET /api/entities/{entity}/definitions", s.definitionsHandler)

	return s.recoverPanicMiddleware(s.requestLoggerMiddleware(mux))
}

// Serve listens until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down server", "addr", s.cfg.Addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("failed to shutdown server", "addr", s.cfg.Addr, "error", err)
		}
	}()

	s.logger.Info("starting server", "addr", s.cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
