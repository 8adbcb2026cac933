package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sevigo/hub2lab/internal/config"
	"github.com/sevigo/hub2lab/internal/descriptor"
	"github.com/sevigo/hub2lab/internal/gitlab"
)

var lintProject int

var lintCmd = &cobra.Command{
	Use:   "lint [file]",
	Short: "Check a CI descriptor the way it would be mirrored",
	Long: `Parse a .gitlab-ci.yml or .failfast-ci.jsonnet file, list its jobs and
variables and, with --project, validate the rendered YAML with the GitLab linter
of that project.

Examples:
  hub2lab lint .gitlab-ci.yml
  hub2lab lint --project 42 .failfast-ci.jsonnet`,
	Args: cobra.ExactArgs(1),
	RunE: runLint,
}

func init() { //nolint:gochecknoinits // Cobra command registration
	lintCmd.Flags().IntVarP(&lintProject, "project", "p", 0, "GitLab project id to lint against")
	rootCmd.AddCommand(lintCmd)
}

func runLint(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	desc, err := descriptor.Parse(path, data)
	if err != nil {
		errorColor.Printf("✗ %s\n", err)
		return err
	}
	rendered, err := desc.Render()
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", path, err)
	}

	titleColor.Printf("%s\n", filepath.Base(path))
	fmt.Printf("jobs:\n")
	for _, job := range desc.Jobs() {
		fmt.Printf("  - %s\n", job)
	}
	if vars := desc.Variables(); len(vars) > 0 {
		fmt.Printf("variables:\n")
		for k, v := range vars {
			dimColor.Printf("  %s=%s\n", k, v)
		}
	}

	if lintProject <= 0 {
		successColor.Printf("✓ parsed, %d bytes rendered\n", len(rendered))
		return nil
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	gl, err := gitlab.NewClient(cfg.GitLab, nil)
	if err != nil {
		return err
	}
	if err := gl.Lint(cmd.Context(), lintProject, descriptor.GitLabCIFile, string(rendered)); err != nil {
		errorColor.Printf("✗ %s\n", err)
		return err
	}
	successColor.Printf("✓ valid for project %d\n", lintProject)
	return nil
}
