// Package app holds the running hub2lab service: the HTTP server, the task
// dispatcher and the collaborators tasks are built from.
package app

import (
	"context"
	"log/slog"

	"github.com/sevigo/hub2lab/internal/config"
	"github.com/sevigo/hub2lab/internal/core"
	"github.com/sevigo/hub2lab/internal/gitlab"
	"github.com/sevigo/hub2lab/internal/jobs"
	"github.com/sevigo/hub2lab/internal/server"
)

// App holds the main application components.
type App struct {
	Cfg        *config.Config
	Tasks      *jobs.Factory
	GitLab     gitlab.Client
	server     *server.Server
	dispatcher core.TaskDispatcher
	logger     *slog.Logger
}

// NewApp assembles an App from its already constructed parts.
func NewApp(cfg *config.Config, srv *server.Server, dispatcher core.TaskDispatcher, tasks *jobs.Factory, gl gitlab.Client, logger *slog.Logger) *App {
	return &App{
		Cfg:        cfg,
		Tasks:      tasks,
		GitLab:     gl,
		server:     srv,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Start runs the HTTP server and blocks until it stops.
func (a *App) Start() error {
	a.logger.Info("starting hub2lab",
		"server_port", a.Cfg.Server.Port,
		"max_workers", a.Cfg.Server.MaxWorkers,
		"gitlab", a.Cfg.GitLab.URL,
		"context", a.Cfg.GitHub.Context)

	if err := a.server.Start(); err != nil {
		a.logger.Error("failed to start HTTP server", "error", err)
		return err
	}
	return nil
}

// Run executes task and every task it leads to, including polls that wait
// for a pipeline, then stops the dispatcher. It is meant for one-shot
// commands; a serving App must not call it.
func (a *App) Run(ctx context.Context, task core.Task) error {
	if err := a.dispatcher.Submit(ctx, task); err != nil {
		return err
	}
	a.dispatcher.Wait()
	a.dispatcher.Stop()
	return nil
}

// Stop shuts down the application cleanly.
func (a *App) Stop() error {
	a.logger.Info("shutting down hub2lab services")

	// The server stops the dispatcher once the listener is closed.
	if err := a.server.Stop(); err != nil {
		return err
	}
	a.logger.Info("hub2lab stopped successfully")
	return nil
}
