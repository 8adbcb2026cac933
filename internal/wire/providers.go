// Package wire assembles the hub2lab object graph.
package wire

import (
	"fmt"
	"log/slog"

	"github.com/google/wire"

	"github.com/sevigo/hub2lab/internal/app"
	"github.com/sevigo/hub2lab/internal/config"
	"github.com/sevigo/hub2lab/internal/core"
	"github.com/sevigo/hub2lab/internal/github"
	"github.com/sevigo/hub2lab/internal/gitlab"
	"github.com/sevigo/hub2lab/internal/gitutil"
	"github.com/sevigo/hub2lab/internal/jobs"
	"github.com/sevigo/hub2lab/internal/logger"
	"github.com/sevigo/hub2lab/internal/pipeline"
	"github.com/sevigo/hub2lab/internal/server"
	"github.com/sevigo/hub2lab/internal/status"
)

// AppSet provides an *app.App given a *config.Config.
var AppSet = wire.NewSet(
	app.NewApp,
	server.NewServer,
	gitutil.NewClient,
	pipeline.NewSynchronizer,
	status.NewSource,
	provideLogger,
	provideCredentials,
	provideGitLab,
	provideRenderer,
	provideFactory,
	provideDispatcher,
	wire.Bind(new(github.CredentialProvider), new(*github.AppCredentials)),
	wire.Bind(new(pipeline.Git), new(*gitutil.Client)),
	wire.Bind(new(jobs.Synchronizer), new(*pipeline.Synchronizer)),
	wire.Bind(new(jobs.StatusSource), new(*status.Source)),
)

func provideLogger(cfg *config.Config) *slog.Logger {
	return logger.NewLogger(cfg.Logging, nil)
}

func provideCredentials(cfg *config.Config, logger *slog.Logger) (*github.AppCredentials, error) {
	key, err := cfg.AppPrivateKey()
	if err != nil {
		return nil, err
	}
	creds, err := github.NewAppCredentials(cfg.GitHub, key, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up GitHub App credentials: %w", err)
	}
	return creds, nil
}

func provideGitLab(cfg *config.Config, logger *slog.Logger) (gitlab.Client, error) {
	return gitlab.NewClient(cfg.GitLab, logger.With("component", "gitlab"))
}

func provideRenderer(cfg *config.Config) *status.Renderer {
	return status.NewRenderer(cfg.GitHub.Context, cfg.FailfastURL)
}

func provideFactory(
	cfg *config.Config,
	sync jobs.Synchronizer,
	source jobs.StatusSource,
	gl gitlab.Client,
	creds github.CredentialProvider,
	renderer *status.Renderer,
	logger *slog.Logger,
) *jobs.Factory {
	return jobs.NewFactory(jobs.Deps{
		Synchronizer: sync,
		Source:       source,
		GitLab:       gl,
		Credentials:  creds,
		Renderer:     renderer,
		Poll:         jobs.PollPolicyFromConfig(cfg.Tasks),
		Logger:       logger,
	})
}

func provideDispatcher(cfg *config.Config, logger *slog.Logger) core.TaskDispatcher {
	return jobs.NewDispatcher(cfg.Server, jobs.PolicyFromConfig(cfg.Tasks.Retry), logger.With("component", "dispatcher"))
}
