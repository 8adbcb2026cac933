// Code generated manually. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package wire

import (
	"github.com/sevigo/hub2lab/internal/app"
	"github.com/sevigo/hub2lab/internal/config"
	"github.com/sevigo/hub2lab/internal/gitutil"
	"github.com/sevigo/hub2lab/internal/pipeline"
	"github.com/sevigo/hub2lab/internal/server"
	"github.com/sevigo/hub2lab/internal/status"
)

// InitializeApp creates and wires all application dependencies.
func InitializeApp(cfg *config.Config) (*app.App, error) {
	slogLogger := provideLogger(cfg)
	appCredentials, err := provideCredentials(cfg, slogLogger)
	if err != nil {
		return nil, err
	}
	gitlabClient, err := provideGitLab(cfg, slogLogger)
	if err != nil {
		return nil, err
	}
	gitClient := gitutil.NewClient(slogLogger)
	synchronizer := pipeline.NewSynchronizer(appCredentials, gitClient, gitlabClient, cfg, slogLogger)
	source := status.NewSource(gitlabClient, slogLogger)
	renderer := provideRenderer(cfg)
	dispatcher := provideDispatcher(cfg, slogLogger)
	factory := provideFactory(cfg, synchronizer, source, gitlabClient, appCredentials, renderer, slogLogger)
	serverServer := server.NewServer(cfg, dispatcher, factory, slogLogger)
	appApp := app.NewApp(cfg, serverServer, dispatcher, factory, gitlabClient, slogLogger)
	return appApp, nil
}
