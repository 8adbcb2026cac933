// Package pipeline mirrors a GitHub commit into a GitLab project and starts a
// pipeline for it.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sevigo/hub2lab/internal/config"
	"github.com/sevigo/hub2lab/internal/core"
	"github.com/sevigo/hub2lab/internal/descriptor"
	"github.com/sevigo/hub2lab/internal/github"
	"github.com/sevigo/hub2lab/internal/gitlab"
	"github.com/sevigo/hub2lab/internal/gitutil"
)

const (
	// mirrorDefaultBranch keeps mirrored refs from becoming the protected
	// default branch of a new project.
	mirrorDefaultBranch = "_failfastci"
	skipCIOption        = "ci.skip"
)

// Git is the subset of gitutil.Client used by the synchronizer.
type Git interface {
	CheckoutTemp(ctx context.Context, src gitutil.Source) (string, func(), error)
	CommitFile(path, file string, content []byte, who gitutil.Identity, message string) (string, error)
	Push(ctx context.Context, path, commit string, spec gitutil.PushSpec) error
}

// Synchronizer implements the mirror-and-trigger procedure.
type Synchronizer struct {
	creds       github.CredentialProvider
	git         Git
	gitlab      gitlab.Client
	cfg         config.GitLabConfig
	failfastURL string
	logger      *slog.Logger
}

// NewSynchronizer creates a Synchronizer.
func NewSynchronizer(creds github.CredentialProvider, git Git, gl gitlab.Client, cfg *config.Config, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		creds:       creds,
		git:         git,
		gitlab:      gl,
		cfg:         cfg.GitLab,
		failfastURL: cfg.FailfastURL,
		logger:      logger,
	}
}

// Trigger mirrors the commit named by ev and starts a pipeline on the mirror.
// Calling it twice for the same commit pushes identical content and starts a
// second pipeline after cancelling the first.
func (s *Synchronizer) Trigger(ctx context.Context, ev *core.WebhookEvent) (*core.RunHandle, error) {
	cred, err := s.creds.Credential(ctx, ev.InstallationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get installation token: %w", err)
	}
	if err := s.resolveHead(ctx, ev); err != nil {
		return nil, err
	}

	src, err := sourceOf(ev)
	if err != nil {
		return nil, err
	}
	cloneURL, err := ev.CloneURL()
	if err != nil {
		return nil, err
	}
	logger := s.logger.With("repo", src.Repo, "sha", src.SHA, "target_ref", src.TargetRef)

	path, cleanup, err := s.git.CheckoutTemp(ctx, gitutil.Source{
		CloneURL: cloneURL,
		Token:    cred.Token,
		Ref:      fetchRef(ev),
		SHA:      src.SHA,
	})
	if err != nil {
		return nil, err
	}
	defer cleanup()

	ci, err := descriptor.Load(path)
	if err != nil {
		return nil, err
	}

	namespace, name := descriptor.Destination(ci.Variables(), s.cfg.Namespace, src.Repo)
	project, err := s.gitlab.EnsureProject(ctx, namespace, name, gitlab.ProjectSettings{
		Visibility:    s.cfg.Visibility,
		SharedRunners: s.cfg.SharedRunners,
		DefaultBranch: mirrorDefaultBranch,
	})
	if err != nil {
		return nil, err
	}
	logger = logger.With("project_id", project.ID)

	corr := core.ExternalCorrelation{
		Kind:           core.ObjectPipeline,
		ProjectID:      project.ID,
		SourceRef:      src.RefName,
		SourcePRID:     src.PRNumber,
		SourceSHA:      src.SHA,
		InstallationID: src.InstallationID,
	}
	vars, err := descriptor.InjectedVariables(src, corr, s.failfastURL)
	if err != nil {
		return nil, err
	}
	ci.Inject(vars)
	content, err := ci.Render()
	if err != nil {
		return nil, err
	}
	if s.cfg.EnableLinter {
		if err := s.gitlab.Lint(ctx, project.ID, ci.File, string(content)); err != nil {
			return nil, err
		}
	}

	commit, err := s.git.CommitFile(path, descriptor.GitLabCIFile, content,
		gitutil.Identity{Name: s.cfg.RobotUser, Email: s.cfg.RobotEmail},
		fmt.Sprintf("hub2lab: %s@%s", src.Repo, src.SHA))
	if err != nil {
		return nil, err
	}
	if err := s.gitlab.SetVariables(ctx, project.ID, descriptor.ProjectVariables(src)); err != nil {
		return nil, err
	}

	err = s.git.Push(ctx, path, commit, gitutil.PushSpec{
		URL:      project.HTTPURLToRepo,
		Username: s.cfg.RobotUser,
		Password: s.cfg.Token,
		Ref:      gitutil.TargetRef(src.TargetRef, ev.IsTag()),
		Options:  map[string]string{skipCIOption: ""},
	})
	if err != nil {
		return nil, err
	}

	// Cancel before create, otherwise a slow cancel could hit the new pipeline.
	cancelled, err := s.gitlab.CancelRunningPipelines(ctx, project.ID, src.TargetRef)
	if len(cancelled) > 0 {
		logger.Info("cancelled running pipelines", "pipelines", cancelled)
	}
	if err != nil {
		logger.Warn("failed to cancel running pipelines", "error", err)
	}

	p, err := s.gitlab.CreatePipeline(ctx, project.ID, src.TargetRef)
	if err != nil {
		return nil, err
	}
	logger.Info("pipeline created", "pipeline_id", p.ID, "commit", commit)

	return &core.RunHandle{
		ProjectID:   project.ID,
		RunID:       p.ID,
		TargetRef:   src.TargetRef,
		SourceSHA:   src.SHA,
		ProjectPath: project.PathWithNamespace,
		WebURL:      p.WebURL,
	}, nil
}

// resolveHead fills the head of an issue_comment event from its pull request.
func (s *Synchronizer) resolveHead(ctx context.Context, ev *core.WebhookEvent) error {
	if ev.Kind != core.KindIssueComment {
		return nil
	}
	if sha, _ := ev.HeadSHA(); sha != "" {
		return nil
	}
	repo, err := ev.RepoFullName()
	if err != nil {
		return err
	}
	owner, name, err := github.SplitRepo(repo)
	if err != nil {
		return err
	}
	client, err := s.creds.ForInstallation(ctx, ev.InstallationID)
	if err != nil {
		return err
	}
	pr, err := client.GetPullRequest(ctx, owner, name, ev.PRNumber)
	if err != nil {
		return err
	}
	// The pull ref lives in the base repository, so the clone URL stays.
	ev.ResolvePullRequestHead(pr.GetHead().GetRef(), pr.GetHead().GetSHA(), "")
	return nil
}

func sourceOf(ev *core.WebhookEvent) (descriptor.Source, error) {
	repo, err := ev.RepoFullName()
	if err != nil {
		return descriptor.Source{}, err
	}
	sha, err := ev.HeadSHA()
	if err != nil {
		return descriptor.Source{}, err
	}
	refName, err := ev.RefName()
	if err != nil {
		return descriptor.Source{}, err
	}
	target, err := ev.TargetRef()
	if err != nil {
		return descriptor.Source{}, err
	}
	if sha == "" || refName == "" {
		return descriptor.Source{}, &core.UnsupportedEventError{Event: string(ev.Kind), Field: "head commit"}
	}
	return descriptor.Source{
		Event:          ev.Kind,
		PRNumber:       ev.PRNumber,
		SHA:            sha,
		RefName:        refName,
		TargetRef:      target,
		InstallationID: ev.InstallationID,
		Repo:           repo,
	}, nil
}

// fetchRef is the ref fetched from GitHub. Pull requests use the pull ref so
// forks are covered.
func fetchRef(ev *core.WebhookEvent) string {
	if ev.IsPullRequest() {
		return fmt.Sprintf("refs/pull/%d/head", ev.PRNumber)
	}
	ref, _ := ev.Ref()
	if strings.HasPrefix(ref, "refs/") {
		return ref
	}
	return "refs/heads/" + ref
}
