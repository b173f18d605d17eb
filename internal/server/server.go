// Package server exposes the plugin configuration store over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"pluginhub/internal/config"
	"pluginhub/internal/configuration"
	"pluginhub/internal/database"
	"pluginhub/internal/logging"
)

// OperationLister reads the install operation log.
type OperationLister interface {
	List(ctx context.Context, limit int) ([]database.InstallOperation, error)
}

// Server represents the HTTP server
type Server struct {
	config     *config.Config
	store      *configuration.Store
	operations OperationLister
	sseManager *SSEManager
	httpServer *http.Server

	// installs outlive the request that started them
	installCtx    context.Context
	cancelInstall context.CancelFunc
	installWG     sync.WaitGroup
}

// New creates a new server instance. operations may be nil when no database is configured.
func New(cfg *config.Config, store *configuration.Store, operations OperationLister, sse *SSEManager) *Server {
	if sse == nil {
		sse = NewSSEManager()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:        cfg,
		store:         store,
		operations:    operations,
		sseManager:    sse,
		installCtx:    ctx,
		cancelInstall: cancel,
	}
}

// Handler returns the routed HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Plugin catalog and installs
	mux.HandleFunc("/api/plugins", s.wrap(s.handlePlugins))
	mux.HandleFunc("/api/plugins/installed/refresh", s.wrap(s.handleRefreshInstalled))
	mux.HandleFunc("/api/plugins/install", s.wrap(s.handleInstallPlugin))
	mux.HandleFunc("/api/plugins/status", s.wrap(s.handlePluginStatus))

	// Entity selection
	mux.HandleFunc("/api/entities", s.wrap(s.handleEntities))
	mux.HandleFunc("/api/entities/", s.wrap(s.routeEntities))

	// Focused configurations
	mux.HandleFunc("/api/configuration/", s.wrap(s.routeConfiguration))

	mux.HandleFunc("/api/operations", s.wrap(s.handleOperations))
	mux.HandleFunc("/api/events", s.wrap(s.handleEvents))
	mux.HandleFunc("/api/version", s.wrap(s.handleVersion))

	return mux
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = config.DefaultPort
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Infof("Starting server on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for running installs until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	s.sseManager.CloseAll()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.installWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logging.Warnf("Cancelling installs still running at shutdown")
		s.cancelInstall()
		<-done
	}
	s.cancelInstall()
	return err
}
