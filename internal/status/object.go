package status

import (
	"cmp"
	"slices"
	"time"

	"github.com/xanzy/go-gitlab"

	"github.com/sevigo/hub2lab/internal/core"
)

// Object is the upstream view of a GitLab pipeline or job. It is all the
// reconciler needs to render a projection.
type Object struct {
	Kind       core.ObjectKind
	ID         int
	ProjectID  int
	PipelineID int

	Name         string
	Stage        string
	Status       string
	AllowFailure bool
	// Source is the pipeline source, e.g. push, api or parent_pipeline.
	Source string
	Ref    string
	SHA    string
	WebURL string

	StartedAt  *time.Time
	FinishedAt *time.Time
	Duration   time.Duration

	// Jobs are the jobs of a pipeline ordered by id.
	Jobs []Object

	// Correlation links the object to the GitHub commit it reports on.
	Correlation core.ExternalCorrelation
}

// FromPipeline converts a GitLab pipeline and its jobs.
func FromPipeline(p *gitlab.Pipeline, jobs []*gitlab.Job) Object {
	obj := Object{
		Kind:       core.ObjectPipeline,
		ID:         p.ID,
		ProjectID:  p.ProjectID,
		PipelineID: p.ID,
		Status:     p.Status,
		Source:     string(p.Source),
		Ref:        p.Ref,
		SHA:        p.SHA,
		WebURL:     p.WebURL,
		StartedAt:  p.StartedAt,
		FinishedAt: p.FinishedAt,
		Duration:   time.Duration(p.Duration) * time.Second,
	}
	obj.Jobs = fromJobs(jobs, p.ProjectID)
	return obj
}

func fromJobs(jobs []*gitlab.Job, projectID int) []Object {
	out := make([]Object, 0, len(jobs))
	for _, j := range jobs {
		job := FromJob(j)
		if job.ProjectID == 0 {
			job.ProjectID = projectID
		}
		out = append(out, job)
	}
	slices.SortFunc(out, func(a, b Object) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// FromJob converts a GitLab job.
func FromJob(j *gitlab.Job) Object {
	obj := Object{
		Kind:         core.ObjectBuild,
		ID:           j.ID,
		PipelineID:   j.Pipeline.ID,
		Name:         j.Name,
		Stage:        j.Stage,
		Status:       j.Status,
		AllowFailure: j.AllowFailure,
		Ref:          j.Ref,
		WebURL:       j.WebURL,
		StartedAt:    j.StartedAt,
		FinishedAt:   j.FinishedAt,
		Duration:     time.Duration(j.Duration * float64(time.Second)),
	}
	if j.Project != nil {
		obj.ProjectID = j.Project.ID
	}
	return obj
}

// Started reports whether the object has a start time.
func (o Object) Started() bool { return o.StartedAt != nil && !o.StartedAt.IsZero() }

// Finished reports whether the object has a finish time.
func (o Object) Finished() bool { return o.FinishedAt != nil && !o.FinishedAt.IsZero() }

// Pending reports whether the object or any of its jobs has not settled. A
// pipeline stays pending until GitLab reports its own final status, which
// may lag behind its last job.
func (o Object) Pending() bool {
	if !o.settled() {
		return true
	}
	for _, j := range o.Jobs {
		if !j.settled() {
			return true
		}
	}
	return false
}

// settled is true once the status is final and a started object also carries
// its finish time, so the projection of it is completed.
func (o Object) settled() bool {
	if !finalStatus(o.Status) {
		return false
	}
	return o.Status == StatusManual || !o.Started() || o.Finished()
}

func finalStatus(s string) bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCanceled, StatusSkipped, StatusManual:
		return true
	}
	return false
}
