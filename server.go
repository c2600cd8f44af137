package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/security"
	"github.com/giantswarm/oauth2-engine/server"
	"github.com/giantswarm/oauth2-engine/storage/memory"
)

// Server wires the protocol engines to storage, logging, audit and
// instrumentation. Build it once with New; it is safe for concurrent use.
type Server struct {
	// Engine exposes the token, authorize and resource engines
	Engine *server.Server

	// Auditor is nil unless audit logging is enabled
	Auditor *security.Auditor

	// Instrumentation provides the meters and tracers used by the engines
	Instrumentation *instrumentation.Instrumentation

	// Config is the effective configuration after defaults
	Config *Config

	logger       *slog.Logger
	memoryStore  *memory.Store
	shutdownOnce sync.Once
}

// New creates a Server
func New(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	config.Logger = logger
	config.HTTP = applyHTTPDefaults(config.HTTP)

	inst, err := instrumentation.New(config.Instrumentation)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation: %w", err)
	}

	s := &Server{
		Instrumentation: inst,
		Config:          &config,
		logger:          logger,
	}

	stores := config.Storage
	if stores.Clients == nil {
		s.memoryStore = memory.New()
		s.memoryStore.SetLogger(logger)
		s.memoryStore.SetInstrumentation(inst)
		stores = server.Storage{
			Clients:            s.memoryStore,
			AccessTokens:       s.memoryStore,
			RefreshTokens:      s.memoryStore,
			AuthorizationCodes: s.memoryStore,
			Users:              s.memoryStore,
			Scopes:             s.memoryStore,
		}
		logger.Info("No storage configured, using in-memory store")
	}

	opts := []server.Option{server.WithInstrumentation(inst)}
	if config.Security.EnableAuditLogging {
		s.Auditor = security.NewAuditor(logger, true)
		opts = append(opts, server.WithAuditor(s.Auditor))
	}

	engine, err := server.New(stores, &config.Engine, logger, opts...)
	if err != nil {
		s.stopOwned()
		return nil, fmt.Errorf("failed to create OAuth engine: %w", err)
	}
	s.Engine = engine

	return s, nil
}

// MemoryStore returns the in-memory store created when no storage was
// configured, or nil. Hosts use it to register clients and users.
func (s *Server) MemoryStore() *memory.Store {
	return s.memoryStore
}

// Shutdown stops background goroutines and flushes instrumentation.
// It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.Engine != nil {
			s.Engine.Stop()
		}
		s.stopOwned()
		if shutdownErr := s.Instrumentation.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("failed to shutdown instrumentation: %w", shutdownErr)
		}
	})
	return err
}

func (s *Server) stopOwned() {
	if s.memoryStore != nil {
		s.memoryStore.Stop()
	}
}
