package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/sevigo/hub2lab/internal/core"
	"github.com/sevigo/hub2lab/internal/status"
)

// StatusUpdateTask reports a GitLab pipeline or job to GitHub after a GitLab
// webhook. Everything it needs is read back from GitLab.
type StatusUpdateTask struct {
	f              *Factory
	ProjectID      int
	Kind           core.ObjectKind
	ObjectID       int
	UpstreamStatus string

	target status.Target
	corr   core.ExternalCorrelation
	webURL string
}

// StatusUpdate returns the task for a GitLab hook on a pipeline or job.
func (f *Factory) StatusUpdate(projectID int, kind core.ObjectKind, objectID int, upstreamStatus string) *StatusUpdateTask {
	return &StatusUpdateTask{f: f, ProjectID: projectID, Kind: kind, ObjectID: objectID, UpstreamStatus: upstreamStatus}
}

func (t *StatusUpdateTask) Name() string { return "status-update" }

func (t *StatusUpdateTask) Key() string {
	return fmt.Sprintf("status-update:%d/%s/%d:%s", t.ProjectID, t.Kind, t.ObjectID, t.UpstreamStatus)
}

func (t *StatusUpdateTask) Execute(ctx context.Context) ([]core.Task, error) {
	if t.Kind == core.ObjectBuild && (t.UpstreamStatus == status.StatusCreated || t.UpstreamStatus == status.StatusPending) {
		t.f.deps.Logger.Debug("skipping queued build", "project_id", t.ProjectID, "build_id", t.ObjectID)
		return nil, nil
	}
	obj, err := t.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return nil, t.f.report(ctx, t.target, obj, false)
}

func (t *StatusUpdateTask) resolve(ctx context.Context) (status.Object, error) {
	src := t.f.deps.Source
	corr, err := src.Correlate(ctx, t.ProjectID, t.Kind, t.ObjectID)
	if err != nil {
		return status.Object{}, err
	}
	t.corr = corr
	target, err := src.Target(ctx, t.ProjectID)
	if err != nil {
		return status.Object{}, err
	}
	t.target = target
	obj, err := src.Snapshot(ctx, corr)
	if err != nil {
		return status.Object{}, err
	}
	t.webURL = obj.WebURL
	return obj, nil
}

func (t *StatusUpdateTask) OnFailure(err error) core.Task {
	return t.f.failure(t.target, t.corr.SourceSHA, t.webURL, err)
}

// ResyncTask re-reads an object from GitLab and publishes it again. With a
// check run id the existing check is rewritten in place.
type ResyncTask struct {
	f           *Factory
	Target      status.Target
	Correlation core.ExternalCorrelation
	CheckRunID  int64

	webURL string
}

// Resync returns the task behind the resync button of a check run.
func (f *Factory) Resync(target status.Target, corr core.ExternalCorrelation, checkRunID int64) *ResyncTask {
	return &ResyncTask{f: f, Target: target, Correlation: corr, CheckRunID: checkRunID}
}

// ResyncPipeline returns the task behind the resync endpoint. The GitHub side
// is recovered from the mirror project.
func (f *Factory) ResyncPipeline(projectID, pipelineID int) *ResyncTask {
	return &ResyncTask{f: f, Correlation: core.ExternalCorrelation{
		Kind:      core.ObjectPipeline,
		ProjectID: projectID,
		ObjectID:  pipelineID,
	}}
}

func (t *ResyncTask) Name() string { return "resync" }

func (t *ResyncTask) Key() string {
	return fmt.Sprintf("resync:%s:%d", objectKey(t.Correlation), t.CheckRunID)
}

func (t *ResyncTask) Execute(ctx context.Context) ([]core.Task, error) {
	var err error
	if t.Target, t.Correlation, err = t.f.complete(ctx, t.Target, t.Correlation); err != nil {
		return nil, err
	}
	obj, err := t.f.deps.Source.Snapshot(ctx, t.Correlation)
	if err != nil {
		return nil, err
	}
	t.webURL = obj.WebURL
	if t.CheckRunID == 0 {
		return nil, t.f.report(ctx, t.Target, obj, true)
	}

	pub, err := t.f.publisher(ctx, t.Target.InstallationID)
	if err != nil {
		return nil, err
	}
	if err := t.f.postStatuses(ctx, pub, t.Target.Repo, obj); err != nil {
		return nil, err
	}
	proj, ok, err := t.f.deps.Renderer.Project(obj)
	if err != nil || !ok {
		return nil, err
	}
	return nil, pub.UpdateCheck(ctx, t.Target.Repo, t.CheckRunID, proj)
}

func (t *ResyncTask) OnFailure(err error) core.Task {
	return t.f.failure(t.Target, t.Correlation.SourceSHA, t.webURL, err)
}

// FailureStatusTask posts the terminal error status of a run.
type FailureStatusTask struct {
	f         *Factory
	Target    status.Target
	SHA       string
	TargetURL string
	Message   string
}

// FailureStatus returns the task that reports cause on sha.
func (f *Factory) FailureStatus(target status.Target, sha, targetURL string, cause error) *FailureStatusTask {
	return &FailureStatusTask{f: f, Target: target, SHA: sha, TargetURL: targetURL, Message: cause.Error()}
}

func (t *FailureStatusTask) Name() string { return "failure-status" }

func (t *FailureStatusTask) Key() string {
	return fmt.Sprintf("failure-status:%s@%s", t.Target.Repo, t.SHA)
}

func (t *FailureStatusTask) Execute(ctx context.Context) ([]core.Task, error) {
	pub, err := t.f.publisher(ctx, t.Target.InstallationID)
	if err != nil {
		return nil, err
	}
	st := t.f.deps.Renderer.FailureStatus(errors.New(t.Message), t.TargetURL)
	return nil, pub.PostStatus(ctx, t.Target.Repo, t.SHA, st)
}
