package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sevigo/hub2lab/internal/core"
	"github.com/sevigo/hub2lab/internal/status"
)

// ErrStillPending is returned by a poll while the pipeline has unfinished jobs.
var ErrStillPending = errors.New("pipeline still pending")

// SyncTask mirrors the commit of a webhook event and starts a pipeline.
type SyncTask struct {
	f     *Factory
	Event *core.WebhookEvent
}

// Sync returns the task that handles ev.
func (f *Factory) Sync(ev *core.WebhookEvent) *SyncTask {
	return &SyncTask{f: f, Event: ev}
}

func (t *SyncTask) Name() string { return "sync" }

func (t *SyncTask) Key() string {
	ev := t.Event
	ref, _ := ev.Ref()
	sha, _ := ev.HeadSHA()
	return fmt.Sprintf("sync:%s:%s#%d:%s@%s", ev.Kind, ev.Repo.FullName, ev.PRNumber, ref, sha)
}

func (t *SyncTask) target() status.Target {
	return status.Target{Repo: t.Event.Repo.FullName, InstallationID: t.Event.InstallationID}
}

// Execute triggers the pipeline and chains a poll of it.
func (t *SyncTask) Execute(ctx context.Context) ([]core.Task, error) {
	handle, err := t.f.deps.Synchronizer.Trigger(ctx, t.Event)
	if err != nil {
		return nil, err
	}
	refName, _ := t.Event.RefName()
	corr := core.ExternalCorrelation{
		Kind:           core.ObjectPipeline,
		ObjectID:       handle.RunID,
		ProjectID:      handle.ProjectID,
		SourceRef:      refName,
		SourcePRID:     t.Event.PRNumber,
		SourceSHA:      handle.SourceSHA,
		InstallationID: t.Event.InstallationID,
	}
	t.f.deps.Logger.Info("pipeline started",
		"repo", t.Event.Repo.FullName,
		"sha", handle.SourceSHA,
		"project_id", handle.ProjectID,
		"pipeline_id", handle.RunID,
	)
	return []core.Task{t.f.Poll(t.target(), corr)}, nil
}

// OnFailure posts the error on the commit.
func (t *SyncTask) OnFailure(err error) core.Task {
	sha, _ := t.Event.HeadSHA()
	return t.f.failure(t.target(), sha, t.Event.CommitURL, err)
}

// PollTask follows a pipeline until every job is final, publishing the
// projection whenever it changes.
type PollTask struct {
	f           *Factory
	Target      status.Target
	Correlation core.ExternalCorrelation

	last   string
	webURL string
}

// Poll returns the task that follows the pipeline named by corr.
func (f *Factory) Poll(target status.Target, corr core.ExternalCorrelation) *PollTask {
	return &PollTask{f: f, Target: target, Correlation: corr}
}

func (t *PollTask) Name() string { return "poll" }

func (t *PollTask) Key() string { return "poll:" + objectKey(t.Correlation) }

// RetryPolicy is the poll policy, so a long pipeline is not cut short by the
// general retry ceiling.
func (t *PollTask) RetryPolicy() RetryPolicy { return t.f.deps.Poll }

// Execute publishes the current state and returns ErrStillPending while jobs
// are unfinished.
func (t *PollTask) Execute(ctx context.Context) ([]core.Task, error) {
	obj, err := t.f.deps.Source.Snapshot(ctx, t.Correlation)
	if err != nil {
		return nil, err
	}
	t.webURL = obj.WebURL
	if fp := fingerprint(obj); fp != t.last {
		if err := t.f.report(ctx, t.Target, obj, true); err != nil {
			return nil, err
		}
		t.last = fp
	}
	if obj.Pending() {
		return nil, fmt.Errorf("pipeline %d: %w", obj.ID, ErrStillPending)
	}
	return nil, nil
}

// OnFailure posts a terminal error, including when the pipeline outlived the
// poll ceiling.
func (t *PollTask) OnFailure(err error) core.Task {
	return t.f.failure(t.Target, t.Correlation.SourceSHA, t.webURL, err)
}

func fingerprint(obj status.Object) string {
	var b strings.Builder
	b.WriteString(obj.Status)
	for _, j := range obj.Jobs {
		fmt.Fprintf(&b, "|%d=%s", j.ID, j.Status)
	}
	return b.String()
}
