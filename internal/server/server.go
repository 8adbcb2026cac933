// Package server exposes the webhook endpoints over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sevigo/hub2lab/internal/config"
	"github.com/sevigo/hub2lab/internal/core"
	"github.com/sevigo/hub2lab/internal/jobs"
)

const defaultShutdownTimeout = 15 * time.Second

// Server serves webhook deliveries and owns the dispatcher they feed.
type Server struct {
	server          *http.Server
	dispatcher      core.TaskDispatcher
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// NewServer creates a server that hands webhooks to dispatcher.
func NewServer(cfg *config.Config, dispatcher core.TaskDispatcher, tasks *jobs.Factory, logger *slog.Logger) *Server {
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	return &Server{
		server: &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           NewRouter(cfg, dispatcher, tasks, logger),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		dispatcher:      dispatcher,
		shutdownTimeout: timeout,
		logger:          logger,
	}
}

// Start listens for webhooks and blocks until Stop or a listener error.
func (s *Server) Start() error {
	s.logger.Info("listening for webhooks", "address", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	return nil
}

// Stop closes the listener, lets accepted deliveries finish and then stops
// the dispatcher. Tasks already queued still run; retries that are not yet
// due are dropped.
func (s *Server) Stop() error {
	s.logger.Info("no longer accepting webhooks", "timeout", s.shutdownTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	err := s.server.Shutdown(ctx)
	if err != nil {
		s.logger.Error("webhook requests did not finish in time", "error", err)
	}

	s.dispatcher.Stop()
	return err
}
