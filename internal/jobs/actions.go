package jobs

import (
	"context"
	"fmt"

	"github.com/sevigo/hub2lab/internal/core"
	"github.com/sevigo/hub2lab/internal/status"
)

// RetryTask re-runs a job, or a whole pipeline on the mirror ref, and follows
// the result.
type RetryTask struct {
	f           *Factory
	Target      status.Target
	Correlation core.ExternalCorrelation
	Actor       string
}

// Retry returns the task behind the retry button and check re-requests.
func (f *Factory) Retry(target status.Target, corr core.ExternalCorrelation, actor string) *RetryTask {
	return &RetryTask{f: f, Target: target, Correlation: corr, Actor: actor}
}

// RetryJob returns a retry of a job known only by its GitLab ids. The GitHub
// side is resolved when the task runs.
func (f *Factory) RetryJob(projectID, jobID int, actor string) *RetryTask {
	return f.Retry(status.Target{}, core.ExternalCorrelation{
		Kind:      core.ObjectBuild,
		ProjectID: projectID,
		ObjectID:  jobID,
	}, actor)
}

func (t *RetryTask) Name() string { return "retry" }

func (t *RetryTask) Key() string { return "retry:" + objectKey(t.Correlation) }

func (t *RetryTask) Execute(ctx context.Context) ([]core.Task, error) {
	var err error
	if t.Target, t.Correlation, err = t.f.complete(ctx, t.Target, t.Correlation); err != nil {
		return nil, err
	}
	gl := t.f.deps.GitLab
	corr := t.Correlation
	logger := t.f.deps.Logger.With("project_id", corr.ProjectID, "actor", t.Actor)

	var pipelineID int
	switch corr.Kind {
	case core.ObjectBuild:
		job, err := gl.RetryJob(ctx, corr.ProjectID, corr.ObjectID)
		if err != nil {
			return nil, err
		}
		pipelineID = job.Pipeline.ID
		logger.Info("job retried", "job_id", corr.ObjectID, "new_job_id", job.ID)
	case core.ObjectPipeline:
		p, err := gl.GetPipeline(ctx, corr.ProjectID, corr.ObjectID)
		if err != nil {
			return nil, err
		}
		created, err := gl.CreatePipeline(ctx, corr.ProjectID, p.Ref)
		if err != nil {
			return nil, err
		}
		pipelineID = created.ID
		logger.Info("pipeline retried", "pipeline_id", corr.ObjectID, "new_pipeline_id", created.ID, "ref", p.Ref)
	default:
		return nil, &core.CorrelationDecodeError{Raw: string(corr.Kind), Err: fmt.Errorf("unknown object kind")}
	}
	return []core.Task{t.f.Poll(t.Target, corr.WithObject(core.ObjectPipeline, pipelineID))}, nil
}

func (t *RetryTask) OnFailure(err error) core.Task {
	return t.f.failure(t.Target, t.Correlation.SourceSHA, "", err)
}

// SkipTask marks a check run as neutral.
type SkipTask struct {
	f          *Factory
	Target     status.Target
	CheckRunID int64
	CheckName  string
	Actor      string
}

// Skip returns the task behind the skip button.
func (f *Factory) Skip(target status.Target, checkRunID int64, checkName, actor string) *SkipTask {
	return &SkipTask{f: f, Target: target, CheckRunID: checkRunID, CheckName: checkName, Actor: actor}
}

func (t *SkipTask) Name() string { return "skip" }

func (t *SkipTask) Key() string { return fmt.Sprintf("skip:%s:%d", t.Target.Repo, t.CheckRunID) }

func (t *SkipTask) Execute(ctx context.Context) ([]core.Task, error) {
	pub, err := t.f.publisher(ctx, t.Target.InstallationID)
	if err != nil {
		return nil, err
	}
	proj := t.f.deps.Renderer.Skip(t.CheckName, t.Actor, t.f.deps.Now())
	return nil, pub.UpdateCheck(ctx, t.Target.Repo, t.CheckRunID, proj)
}
