package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"skyroute-hq/skyroute/pkg/cache"
	"skyroute-hq/skyroute/pkg/config"
	"skyroute-hq/skyroute/pkg/proxy/middleware"
	"skyroute-hq/skyroute/pkg/telemetry/metrics"
)

// Server is the gateway's HTTP server.
type Server struct {
	config       *config.Config
	proxy        http.Handler
	cache        *cache.Cache
	metrics      *metrics.Collector
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a new gateway server. The proxy handler serves every
// request that does not hit a reserved operational path.
func NewServer(cfg *config.Config, proxyHandler http.Handler, c *cache.Cache, collector *metrics.Collector) *Server {
	return &Server{
		config:       cfg,
		proxy:        proxyHandler,
		cache:        c,
		metrics:      collector,
		shutdownChan: make(chan struct{}),
		isRunning:    false,
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	handler := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           s.config.Server.ListenAddress,
		Handler:        handler,
		ReadTimeout:    s.config.Server.ReadTimeout.Std(),
		WriteTimeout:   s.config.Server.WriteTimeout.Std(),
		IdleTimeout:    s.config.Server.IdleTimeout.Std(),
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting gateway server",
			"address", s.config.Server.ListenAddress,
			"metrics_enabled", s.config.Telemetry.Metrics.Enabled,
			"admin_enabled", s.config.Admin.Enabled,
		)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		slog.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown",
			"timeout", s.config.Server.ShutdownTimeout.Std().String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout.Std())
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("gateway server stopped")
	})

	return shutdownErr
}

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	if s.config.Telemetry.Metrics.Enabled && s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	if s.config.Admin.Enabled && s.cache != nil {
		mux.Handle("/admin/cache/", http.StripPrefix("/admin/cache", NewAdminHandler(s.cache)))
	}

	// Everything else is proxied.
	mux.Handle("/", s.proxy)

	var handler http.Handler = mux
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Stop requests shutdown from another goroutine.
func (s *Server) Stop() {
	select {
	case s.shutdownChan <- struct{}{}:
	default:
	}
}
