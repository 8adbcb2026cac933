// Package status projects GitLab pipeline and job state onto GitHub check runs
// and commit statuses.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/sevigo/hub2lab/internal/core"
)

// GitLab pipeline and job statuses.
const (
	StatusCreated  = "created"
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
	StatusSkipped  = "skipped"
	StatusManual   = "manual"
	StatusWarning  = "warning"
	StatusUnknown  = "unknown"

	// statusAllowFailure is the synthetic status of a failed job that is
	// allowed to fail.
	statusAllowFailure = "allow_failure"

	sourceParentPipeline = "parent_pipeline"
	maxDescription       = 140
)

var checkConclusions = map[string]string{
	statusAllowFailure: core.ConclusionNeutral,
	StatusFailed:       core.ConclusionFailure,
	StatusSuccess:      core.ConclusionSuccess,
	StatusSkipped:      core.ConclusionSuccess,
	StatusUnknown:      core.ConclusionFailure,
	StatusManual:       core.ConclusionActionRequired,
	StatusCanceled:     core.ConclusionCancelled,
	StatusPending:      core.CheckQueued,
	StatusRunning:      core.CheckInProgress,
	StatusWarning:      core.ConclusionNeutral,
}

var commitStates = map[string]string{
	StatusFailed:   core.StateFailure,
	StatusSuccess:  core.StateSuccess,
	StatusSkipped:  core.StateSuccess,
	StatusUnknown:  core.StateError,
	StatusManual:   core.StateSuccess,
	StatusCanceled: core.StateError,
	StatusPending:  core.StatePending,
	StatusCreated:  core.StatePending,
	StatusRunning:  core.StatePending,
	StatusWarning:  core.StateSuccess,
}

var stateDescriptions = map[string]string{
	core.StatePending: "Pipeline in-progress",
	core.StateSuccess: "Pipeline success",
	core.StateError:   "Pipeline in error or canceled",
	core.StateFailure: "Pipeline failed",
}

const iconURL = "https://s3.conny.dev/public/icons-failfast/%s.png"

var icons = map[string]string{
	statusAllowFailure: "warning",
	StatusFailed:       "failed2",
	StatusSuccess:      "happy-agnes-icon_43743",
	StatusSkipped:      "skip",
	StatusUnknown:      "failed2",
	StatusManual:       "play",
	StatusCanceled:     "cancel",
	StatusPending:      "waiting",
	StatusCreated:      "waiting",
	StatusRunning:      "running",
	StatusWarning:      "warning",
}

// Check-run buttons.
var (
	ActionRetry  = core.CheckAction{Label: "retry", Description: "Retries the job", Identifier: "retry"}
	ActionSkip   = core.CheckAction{Label: "Skip test", Description: "Marks the job as neutral", Identifier: "skip"}
	ActionResync = core.CheckAction{Label: "Resync status", Description: "Resync the status from gitlab", Identifier: "resync"}
)

// Actions returns the buttons offered on unfinished or unsuccessful checks.
func Actions() []core.CheckAction {
	return []core.CheckAction{ActionRetry, ActionSkip, ActionResync}
}

// Renderer turns upstream objects into GitHub payloads. It holds no state
// besides its naming configuration, so equal inputs give equal outputs.
type Renderer struct {
	// Context prefixes check names and status contexts, e.g. "ffci".
	Context     string
	FailfastURL string
}

// NewRenderer returns a Renderer for the given status context.
func NewRenderer(context, failfastURL string) *Renderer {
	return &Renderer{
		Context:     strings.TrimSuffix(context, "/"),
		FailfastURL: strings.TrimSuffix(failfastURL, "/"),
	}
}

// effectiveStatus folds allow_failure into the upstream status of a job.
func effectiveStatus(obj Object) string {
	if obj.Kind == core.ObjectBuild && obj.Status == StatusFailed && obj.AllowFailure {
		return statusAllowFailure
	}
	return obj.Status
}

// Transition derives the check state from the upstream timestamps and
// status. The boolean is false when no update must be emitted.
func Transition(obj Object) (state, conclusion string, ok bool) {
	upstream := effectiveStatus(obj)
	if upstream == StatusCreated {
		return "", "", false
	}
	switch {
	case !obj.Started():
		return core.CheckQueued, "", true
	case !obj.Finished():
		return core.CheckInProgress, "", true
	}
	mapped, known := checkConclusions[upstream]
	if !known {
		mapped = core.ConclusionFailure
	}
	if mapped == core.CheckQueued || mapped == core.CheckInProgress {
		return mapped, "", true
	}
	return core.CheckCompleted, mapped, true
}

// Suppressed reports whether obj must not be reported at all.
func Suppressed(obj Object) bool {
	return obj.Kind == core.ObjectPipeline && obj.Source == sourceParentPipeline
}

// Project renders the check run of obj. It returns false when the object
// must not produce an update, and an error when obj carries no valid
// correlation to address the check run by.
func (r *Renderer) Project(obj Object) (core.CheckProjection, bool, error) {
	if Suppressed(obj) {
		return core.CheckProjection{}, false, nil
	}
	state, conclusion, ok := Transition(obj)
	if !ok {
		return core.CheckProjection{}, false, nil
	}
	ext, err := obj.Correlation.WithObject(obj.Kind, obj.ID).Encode()
	if err != nil {
		return core.CheckProjection{}, false, fmt.Errorf("%s %d: %w", obj.Kind, obj.ID, err)
	}

	upstream := effectiveStatus(obj)
	proj := core.CheckProjection{
		ExternalID: ext,
		HeadSHA:    obj.Correlation.SourceSHA,
		DetailsURL: obj.WebURL,
		Status:     state,
		Conclusion: conclusion,
		Icon:       icon(upstream),
	}
	if state != core.CheckQueued {
		proj.StartedAt = utc(obj.StartedAt)
	}
	if state == core.CheckCompleted {
		proj.CompletedAt = utc(obj.FinishedAt)
	}

	if obj.Kind == core.ObjectBuild {
		proj.Name = fmt.Sprintf("%s/job/%s", r.Context, obj.Name)
		proj.Title = fmt.Sprintf("%s/%s", obj.Stage, obj.Name)
		proj.Summary = fmt.Sprintf("%s/%s", obj.Name, upstream)
		proj.Body = fmt.Sprintf("# %s/%s\n\n## Trace available: %s", obj.Stage, obj.Name, obj.WebURL)
	} else {
		proj.Name = r.Context + "/pipeline"
		proj.Title = fmt.Sprintf("pipeline/%d", obj.ID)
		proj.Summary = fmt.Sprintf("pipeline %d: %s", obj.ID, upstream)
		proj.Body = proj.Summary + "\n\n" + jobTable(obj.Jobs)
	}

	if state != core.CheckCompleted || conclusion != core.ConclusionSuccess {
		proj.Actions = Actions()
	}
	return proj, true, nil
}

// CommitStatus renders the legacy pipeline status. Jobs and child pipelines
// have none.
func (r *Renderer) CommitStatus(obj Object) (core.CommitStatus, bool) {
	if obj.Kind != core.ObjectPipeline || Suppressed(obj) {
		return core.CommitStatus{}, false
	}
	state, ok := commitStates[obj.Status]
	if !ok {
		state = core.StateError
	}
	return core.CommitStatus{
		State:       state,
		TargetURL:   obj.WebURL,
		Description: stateDescriptions[state],
		Context:     r.Context + "/pipeline",
	}, true
}

// ResyncStatus is posted next to the pipeline status and links to the
// resync endpoint of the pipeline.
func (r *Renderer) ResyncStatus(projectID, pipelineID int) core.CommitStatus {
	return core.CommitStatus{
		State:       core.StateSuccess,
		TargetURL:   fmt.Sprintf("%s/api/v1/resync/%d/%d", r.FailfastURL, projectID, pipelineID),
		Description: "resync-gitlab status",
		Context:     r.Context + "/resync-gitlab",
	}
}

// FailureStatus is the terminal status posted when a run could not be
// started or followed.
func (r *Renderer) FailureStatus(err error, targetURL string) core.CommitStatus {
	desc := "An error occurred in pipeline execution. " + err.Error()
	if len(desc) > maxDescription {
		desc = desc[:maxDescription-3] + "..."
	}
	return core.CommitStatus{
		State:       core.StateError,
		TargetURL:   targetURL,
		Description: desc,
		Context:     r.Context + "/pipeline",
	}
}

// Skip forces a check to completed/neutral.
func (r *Renderer) Skip(name, actor string, at time.Time) core.CheckProjection {
	at = at.UTC()
	summary := "Marked as neutral"
	if actor != "" {
		summary += " by " + actor
	}
	return core.CheckProjection{
		Name:        name,
		Status:      core.CheckCompleted,
		Conclusion:  core.ConclusionNeutral,
		CompletedAt: &at,
		Title:       name,
		Summary:     summary,
		Icon:        icon(StatusSkipped),
		Actions:     Actions(),
	}
}

func icon(status string) string {
	name, ok := icons[status]
	if !ok {
		name = icons[StatusUnknown]
	}
	return fmt.Sprintf(iconURL, name)
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func jobTable(jobs []Object) string {
	if len(jobs) == 0 {
		return "_no jobs_"
	}
	var b strings.Builder
	b.WriteString("| name | id | stage | status | duration |\n")
	b.WriteString("| --- | --- | --- | --- | --- |\n")
	for _, j := range jobs {
		fmt.Fprintf(&b, "| [%s](%s) | %d | %s | %s | %s |\n",
			j.Name, j.WebURL, j.ID, j.Stage, effectiveStatus(j), duration(j.Duration))
	}
	return b.String()
}

func duration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}
