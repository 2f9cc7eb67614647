package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/servekit/internal/core/crypto"
	"github.com/artpar/servekit/internal/core/manifest"
	"github.com/artpar/servekit/internal/core/wire"
	"github.com/artpar/servekit/internal/shell/api"
	"github.com/artpar/servekit/internal/shell/store"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitHTTPServerError = 3
	ExitManifestError   = 4
)

// =============================================================================
// Server
// =============================================================================

// Server represents the servekit application server.
type Server struct {
	config     *Config
	httpServer *http.Server
	store      store.Store
	sealer     *crypto.Sealer
	logger     *slog.Logger
}

// NewServer creates a new server with the given config.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	// Connect to database
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}

	// Build the payload sealer when a passphrase is configured
	var sealer *crypto.Sealer
	if cfg.Security.Passphrase != "" {
		sealer, err = crypto.NewSealer(cfg.Security.Passphrase, []byte(cfg.Security.Salt))
		if err != nil {
			s.Close()
			return nil, &ServerError{
				Op:       "NewServer",
				Err:      err,
				ExitCode: ExitConfigError,
			}
		}
		logger.Info("opaque payload sealing enabled")
	}

	// Create HTTP handler
	handler := api.NewHandler(s, sealer, logger)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		store:      s,
		sealer:     sealer,
		logger:     logger,
	}, nil
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Apply the deployment manifest before serving traffic
	if s.config.Manifest.Path != "" {
		if err := s.applyManifest(ctx); err != nil {
			return &ServerError{
				Op:       "Start",
				Err:      err,
				ExitCode: ExitManifestError,
			}
		}
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			"address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// applyManifest creates any manifest deployment whose name has no active
// definition. Existing names are left untouched, so restarting the server
// never clobbers revisions derived through the API.
func (s *Server) applyManifest(ctx context.Context) error {
	m, err := manifest.ParseFile(s.config.Manifest.Path)
	if err != nil {
		return err
	}
	defs, err := m.Definitions()
	if err != nil {
		return err
	}

	for _, def := range defs {
		name := def.Config.Name()

		_, err := s.store.GetDefinitionByName(ctx, name)
		if err == nil {
			s.logger.Info("manifest deployment already active, skipping", "name", name)
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		record := &store.Record{
			ID:        def.ID,
			Status:    store.StatusActive,
			Config:    def.Config,
			CreatedAt: def.CreatedAt,
			UpdatedAt: def.CreatedAt,
		}
		if payload := def.InitPayload(); payload != nil {
			opaque, err := wire.EncodeOpaque(payload)
			if err != nil {
				return err
			}
			if s.sealer != nil {
				opaque, err = s.sealer.Seal(opaque)
				if err != nil {
					return err
				}
				record.OpaqueSealed = true
			}
			record.Opaque = opaque
		}

		if err := s.store.CreateDefinition(ctx, record); err != nil {
			return err
		}
		s.logger.Info("manifest deployment created", "name", name, "deployment_id", def.ID)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	// Shutdown HTTP server
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// Close database
	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
	}

	s.logger.Info("shutdown complete")
	return nil
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
