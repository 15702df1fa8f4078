// ABOUTME: Host orchestrator that wires the store, gateway connector, command
// ABOUTME: router, connection registry, and HTTP API into one runnable server.

package host

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/vireonhq/vireon/internal/api"
	"github.com/vireonhq/vireon/internal/auth"
	"github.com/vireonhq/vireon/internal/commands"
	"github.com/vireonhq/vireon/internal/config"
	"github.com/vireonhq/vireon/internal/gateway"
	"github.com/vireonhq/vireon/internal/registry"
	"github.com/vireonhq/vireon/internal/store"
)

// Host owns the component lifecycle for one hosting server instance.
type Host struct {
	config     *config.Config
	store      store.Store
	registry   *registry.Registry
	httpServer *http.Server
	logger     *slog.Logger
}

// Option overrides a default dependency, used by tests.
type Option func(*options)

type options struct {
	connector gateway.Connector
}

// WithConnector replaces the Discord connector.
func WithConnector(c gateway.Connector) Option {
	return func(o *options) { o.connector = c }
}

// initStore creates the store from config, honoring the VIREON_DB_PATH
// environment override.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("VIREON_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New builds a Host from config. Nothing connects or listens until Run.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Host, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	connector := o.connector
	if connector == nil {
		connector = gateway.NewDiscordConnector(logger)
	}

	catalog := commands.NewDefaultCatalog(cfg.Bots.CommandPrefix)
	router := commands.NewRouter(commands.RouterConfig{
		Catalog: catalog,
		Flags:   s,
		Prefix:  cfg.Bots.CommandPrefix,
		Logger:  logger,
	})

	reg := registry.New(registry.Config{
		Connector:      connector,
		Store:          s,
		Handler:        router,
		Logger:         logger,
		ConnectTimeout: cfg.Bots.ConnectTimeout,
	})

	apiServer := api.New(api.Config{
		Store:    s,
		Registry: reg,
		Verifier: auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL),
		Catalog:  catalog,
		Nodes:    cfg.Bots.Nodes,
		Logger:   logger,
	})

	h := &Host{
		config:   cfg,
		store:    s,
		registry: reg,
		logger:   logger,
	}

	mux := http.NewServeMux()
	apiServer.RegisterRoutes(mux)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /ready", h.handleReady)

	h.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return h, nil
}

// Registry exposes the connection registry, used by tests and the CLI.
func (h *Host) Registry() *registry.Registry {
	return h.registry
}

// Run starts the HTTP server, restores persisted bots in the background,
// and blocks until ctx is canceled or the server fails.
func (h *Host) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.httpServer.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := h.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	// Reconnect bots the previous process left online. The API is already
	// serving; restore never blocks startup.
	go h.registry.RestoreAll(ctx)

	if h.config.Bots.RestoreRetryInterval > 0 {
		go h.registry.RunRetryLoop(ctx, h.config.Bots.RestoreRetryInterval)
	}

	var serverErr error
	select {
	case <-ctx.Done():
		h.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		h.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := h.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown uses a fresh context since the run context is already
// canceled by the time this is called.
func (h *Host) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.Shutdown(ctx)
}

// Shutdown stops the HTTP server, disconnects all live bots without
// touching their persisted status, and closes the store.
func (h *Host) Shutdown(ctx context.Context) error {
	h.logger.Info("shutting down")

	var firstErr error
	if err := h.httpServer.Shutdown(ctx); err != nil {
		h.logger.Error("HTTP shutdown failed", "error", err)
		firstErr = err
	}

	h.registry.ShutdownAll()

	if err := h.store.Close(); err != nil {
		h.logger.Error("store close failed", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	h.logger.Info("shutdown complete")
	return firstErr
}

func (h *Host) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady reports how many bot connections are live.
func (h *Host) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d bots connected)", h.registry.Count())
}
