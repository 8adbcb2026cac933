package status

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/sevigo/hub2lab/internal/core"
	"github.com/sevigo/hub2lab/internal/descriptor"
	"github.com/sevigo/hub2lab/internal/gitlab"
)

// Target is the GitHub side of a mirror project, read back from the project
// variables written by the synchronizer.
type Target struct {
	Repo           string
	InstallationID int64
}

// Source reads upstream state from GitLab. Every call re-queries GitLab, so
// the result only depends on what GitLab reports at that moment.
type Source struct {
	client gitlab.Client
	logger *slog.Logger
}

// NewSource returns a Source backed by client.
func NewSource(client gitlab.Client, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{client: client, logger: logger}
}

// Snapshot fetches the object named by corr. Pipelines are returned with
// their jobs.
func (s *Source) Snapshot(ctx context.Context, corr core.ExternalCorrelation) (Object, error) {
	var obj Object
	switch corr.Kind {
	case core.ObjectPipeline:
		g, gctx := errgroup.WithContext(ctx)
		var (
			pipelineObj Object
			jobs        []Object
		)
		g.Go(func() error {
			p, err := s.client.GetPipeline(gctx, corr.ProjectID, corr.ObjectID)
			if err != nil {
				return err
			}
			pipelineObj = FromPipeline(p, nil)
			return nil
		})
		g.Go(func() error {
			list, err := s.client.ListPipelineJobs(gctx, corr.ProjectID, corr.ObjectID)
			if err != nil {
				return err
			}
			jobs = fromJobs(list, corr.ProjectID)
			return nil
		})
		if err := g.Wait(); err != nil {
			return Object{}, err
		}
		obj = pipelineObj
		obj.Jobs = jobs
	case core.ObjectBuild:
		job, err := s.client.GetJob(ctx, corr.ProjectID, corr.ObjectID)
		if err != nil {
			return Object{}, err
		}
		obj = FromJob(job)
	default:
		return Object{}, &core.CorrelationDecodeError{Raw: string(corr.Kind), Err: fmt.Errorf("unknown object kind")}
	}

	if obj.ProjectID == 0 {
		obj.ProjectID = corr.ProjectID
	}
	obj.Correlation = corr
	return obj, nil
}

// Correlate rebuilds the correlation of a pipeline or job from the
// descriptor committed to the mirror.
func (s *Source) Correlate(ctx context.Context, projectID int, kind core.ObjectKind, objectID int) (core.ExternalCorrelation, error) {
	pipelineID := objectID
	if kind == core.ObjectBuild {
		job, err := s.client.GetJob(ctx, projectID, objectID)
		if err != nil {
			return core.ExternalCorrelation{}, err
		}
		pipelineID = job.Pipeline.ID
	}
	p, err := s.client.GetPipeline(ctx, projectID, pipelineID)
	if err != nil {
		return core.ExternalCorrelation{}, err
	}
	raw, err := s.client.GetRawFile(ctx, projectID, descriptor.GitLabCIFile, p.SHA)
	if err != nil {
		return core.ExternalCorrelation{}, err
	}
	d, err := descriptor.Parse(descriptor.GitLabCIFile, raw)
	if err != nil {
		return core.ExternalCorrelation{}, err
	}
	corr, err := descriptor.CorrelationFromVariables(d.Variables(), projectID)
	if err != nil {
		return core.ExternalCorrelation{}, err
	}
	return corr.WithObject(kind, objectID), nil
}

// Target reads the GitHub repository and installation of a mirror project.
func (s *Source) Target(ctx context.Context, projectID int) (Target, error) {
	var t Target
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		repo, err := s.client.GetVariable(gctx, projectID, descriptor.VarGitHubRepo)
		t.Repo = repo
		return err
	})
	var rawID string
	g.Go(func() error {
		id, err := s.client.GetVariable(gctx, projectID, descriptor.VarInstallationID)
		rawID = id
		return err
	})
	if err := g.Wait(); err != nil {
		return Target{}, err
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return Target{}, &core.CorrelationDecodeError{Raw: rawID, Err: err}
	}
	t.InstallationID = id
	return t, nil
}
