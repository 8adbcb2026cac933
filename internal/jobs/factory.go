package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sevigo/hub2lab/internal/core"
	"github.com/sevigo/hub2lab/internal/github"
	"github.com/sevigo/hub2lab/internal/gitlab"
	"github.com/sevigo/hub2lab/internal/status"
)

// Synchronizer mirrors a commit and starts a pipeline for it.
type Synchronizer interface {
	Trigger(ctx context.Context, ev *core.WebhookEvent) (*core.RunHandle, error)
}

// StatusSource reads upstream CI state.
type StatusSource interface {
	Snapshot(ctx context.Context, corr core.ExternalCorrelation) (status.Object, error)
	Correlate(ctx context.Context, projectID int, kind core.ObjectKind, objectID int) (core.ExternalCorrelation, error)
	Target(ctx context.Context, projectID int) (status.Target, error)
}

// Deps are the collaborators shared by all tasks.
type Deps struct {
	Synchronizer Synchronizer
	Source       StatusSource
	GitLab       gitlab.Client
	Credentials  github.CredentialProvider
	Renderer     *status.Renderer
	// Poll is the retry policy of poll tasks. It shares the attempt ceiling
	// of every other task, with longer intervals.
	Poll   RetryPolicy
	Logger *slog.Logger
	Now    func() time.Time
}

// Factory builds tasks bound to a set of dependencies.
type Factory struct {
	deps Deps
}

// NewFactory creates a Factory.
func NewFactory(deps Deps) *Factory {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Poll.MaxAttempts <= 0 {
		deps.Poll = DefaultRetryPolicy
	}
	return &Factory{deps: deps}
}

func (f *Factory) publisher(ctx context.Context, installationID int64) (github.StatusPublisher, error) {
	client, err := f.deps.Credentials.ForInstallation(ctx, installationID)
	if err != nil {
		return nil, err
	}
	return github.NewStatusPublisher(client), nil
}

// report publishes obj: commit statuses first for pipelines, then the check.
// With withJobs set every job of a pipeline gets its own check as well.
func (f *Factory) report(ctx context.Context, target status.Target, obj status.Object, withJobs bool) error {
	pub, err := f.publisher(ctx, target.InstallationID)
	if err != nil {
		return err
	}
	if err := f.postStatuses(ctx, pub, target.Repo, obj); err != nil {
		return err
	}
	proj, ok, err := f.deps.Renderer.Project(obj)
	if err != nil {
		return err
	}
	if ok {
		if _, err := pub.CreateCheck(ctx, target.Repo, proj); err != nil {
			return err
		}
	}
	if !withJobs || status.Suppressed(obj) {
		return nil
	}
	for _, job := range obj.Jobs {
		job.Correlation = obj.Correlation
		proj, ok, err := f.deps.Renderer.Project(job)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if _, err := pub.CreateCheck(ctx, target.Repo, proj); err != nil {
			return err
		}
	}
	return nil
}

func (f *Factory) postStatuses(ctx context.Context, pub github.StatusPublisher, repo string, obj status.Object) error {
	st, ok := f.deps.Renderer.CommitStatus(obj)
	if !ok {
		return nil
	}
	sha := obj.Correlation.SourceSHA
	if err := pub.PostStatus(ctx, repo, sha, st); err != nil {
		return err
	}
	return pub.PostStatus(ctx, repo, sha, f.deps.Renderer.ResyncStatus(obj.ProjectID, obj.ID))
}

// failure returns the failure-status task for a run, or nil when the commit
// is unknown.
func (f *Factory) failure(target status.Target, sha, targetURL string, err error) core.Task {
	if target.Repo == "" || sha == "" {
		return nil
	}
	return f.FailureStatus(target, sha, targetURL, err)
}

func objectKey(corr core.ExternalCorrelation) string {
	return fmt.Sprintf("%d/%s/%d", corr.ProjectID, corr.Kind, corr.ObjectID)
}

// complete fills in what a task created from a bare GitLab id lacks: the
// correlation from the mirrored descriptor and the target from the project
// variables.
func (f *Factory) complete(ctx context.Context, target status.Target, corr core.ExternalCorrelation) (status.Target, core.ExternalCorrelation, error) {
	src := f.deps.Source
	if corr.SourceSHA == "" {
		full, err := src.Correlate(ctx, corr.ProjectID, corr.Kind, corr.ObjectID)
		if err != nil {
			return target, corr, err
		}
		corr = full
	}
	if target.Repo == "" {
		t, err := src.Target(ctx, corr.ProjectID)
		if err != nil {
			return target, corr, err
		}
		target = t
	}
	return target, corr, nil
}
