package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dylangardner/userctl/internal/logger"
	"github.com/dylangardner/userctl/pkg/registry"
)

// Server wraps an http.Server with graceful shutdown for one of the
// ambient HTTP concerns (health or metrics). Each concern gets its own
// Server instance so either can be started, stopped, and configured
// independently.
type Server struct {
	name         string
	server       *http.Server
	config       ServerConfig
	shutdownOnce sync.Once
}

// NewHealthServer creates the liveness/readiness HTTP server backed by reg.
//
// The server is created in a stopped state. Call Start() to begin serving requests.
func NewHealthServer(config ServerConfig, reg *registry.Registry) *Server {
	return newServer("health", config, NewHealthRouter(reg))
}

// NewMetricsServer creates the Prometheus scrape HTTP server for promReg.
// promReg must be non-nil; callers should not construct a metrics server
// when metrics are disabled.
func NewMetricsServer(config ServerConfig, promReg *prometheus.Registry) *Server {
	return newServer("metrics", config, NewMetricsRouter(promReg))
}

func newServer(name string, config ServerConfig, handler http.Handler) *Server {
	config.applyDefaults()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{name: name, server: server, config: config}
}

// Start starts the HTTP server and blocks until the context is cancelled
// or an error occurs.
//
// When the context is cancelled, Start initiates graceful shutdown and returns.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("ambient HTTP server listening", "server", s.name, "port", s.config.Port)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("ambient HTTP server shutdown signal received", "server", s.name)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("%s server failed: %w", s.name, err)
	}
}

// Stop initiates graceful shutdown of the HTTP server.
//
// Stop is safe to call multiple times and safe to call concurrently with Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("ambient HTTP server shutdown initiated", "server", s.name)

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("%s server shutdown error: %w", s.name, err)
			logger.Error("ambient HTTP server shutdown error", "server", s.name, "error", err)
		} else {
			logger.Info("ambient HTTP server stopped gracefully", "server", s.name)
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.config.Port
}
