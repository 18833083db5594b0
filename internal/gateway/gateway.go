// ABOUTME: Gateway orchestrator wiring the store, sessions, and HTTP server
// ABOUTME: Manages route registration and graceful shutdown lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tablekv/tablekv/internal/auth"
	"github.com/tablekv/tablekv/internal/config"
	"github.com/tablekv/tablekv/internal/store"
)

// Gateway orchestrates the tablekv server components. Every request carries
// an optional session cookie and a (table, key, operation) triple; the
// gateway resolves identity, evaluates policy, and performs exactly one
// bounded storage operation.
type Gateway struct {
	config     *config.Config
	store      store.Store
	sessions   *auth.SessionManager
	policy     *Policy
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Gateway, opening the SQLite store at the configured path.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return NewWithStore(cfg, st, logger), nil
}

// NewWithStore creates a Gateway over an existing store. Used by tests.
func NewWithStore(cfg *config.Config, st store.Store, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}

	sessions := auth.NewSessionManager(st, st, cfg.Auth.SessionDuration)

	return &Gateway{
		config:   cfg,
		store:    st,
		sessions: sessions,
		policy:   NewPolicy(st, st),
		logger:   logger.With("component", "gateway"),
	}
}

// Handler returns the fully-routed HTTP handler.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()

	withSession := auth.SessionMiddleware(g.sessions)

	// Public routes (no session resolution)
	mux.HandleFunc("GET /ping", g.handlePing)
	mux.HandleFunc("POST /login", g.handleLogin)

	// Session-aware routes. A missing cookie is a guest request; a bad
	// cookie is rejected by the middleware before the handler runs.
	mux.Handle("POST /create_kv", withSession(auth.RequireUser(g.handleCreateTable)))
	mux.Handle("GET /kv/{table}/{key}", withSession(http.HandlerFunc(g.handleGetItem)))
	mux.Handle("POST /kv/{table}/{key}", withSession(http.HandlerFunc(g.handlePutItem)))
	mux.Handle("DELETE /kv/{table}/{key}", withSession(http.HandlerFunc(g.handleDeleteItem)))

	return mux
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// server fails. Shutdown is graceful with a short drain timeout.
func (g *Gateway) Run(ctx context.Context) error {
	g.httpServer = &http.Server{
		Addr:    g.config.Server.HTTPAddr,
		Handler: g.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", g.config.Server.HTTPAddr)
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	g.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := g.httpServer.Shutdown(shutdownCtx); err != nil {
		g.logger.Warn("graceful shutdown failed", "error", err)
	}

	return g.store.Close()
}
