package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sevigo/hub2lab/internal/app"
	"github.com/sevigo/hub2lab/internal/config"
	"github.com/sevigo/hub2lab/internal/server/handler"
	"github.com/sevigo/hub2lab/internal/wire"
)

var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	dimColor     = color.New(color.FgHiBlack)
)

var rootCmd = &cobra.Command{
	Use:     "hub2lab",
	Short:   "hub2lab runs GitLab CI pipelines for GitHub repositories.",
	Long:    `hub2lab mirrors GitHub commits to GitLab, triggers their pipelines and reports the results back as GitHub checks and commit statuses.`,
	Version: handler.Version,
	// Errors are reported by main.
	SilenceUsage: true,
}

// initApp loads the configuration and wires the application.
func initApp() (*app.App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	a, err := wire.InitializeApp(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return a, nil
}
