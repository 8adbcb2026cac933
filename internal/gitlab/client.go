// Package gitlab wraps the GitLab REST API operations the bridge needs to
// mirror repositories and follow their pipelines.
package gitlab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gregjones/httpcache"
	"github.com/xanzy/go-gitlab"

	"github.com/sevigo/hub2lab/internal/config"
	"github.com/sevigo/hub2lab/internal/core"
)

const (
	service = "gitlab"
	perPage = 100
)

// ProjectSettings are applied when a mirror project has to be created.
type ProjectSettings struct {
	Visibility    string
	SharedRunners bool
	DefaultBranch string
}

// Client is the subset of the GitLab API used by the synchronizer and the
// status reconciler. Every error it returns is a *core.RemoteAPIError or a
// descriptor lint error.
//
//go:generate mockgen -destination=../../mocks/mock_gitlab_client.go -package=mocks -mock_names Client=MockGitLabClient . Client
type Client interface {
	EnsureProject(ctx context.Context, namespace, name string, settings ProjectSettings) (*gitlab.Project, error)
	GetProject(ctx context.Context, pid any) (*gitlab.Project, error)
	SetVariables(ctx context.Context, projectID int, vars map[string]string) error
	GetVariable(ctx context.Context, projectID int, key string) (string, error)
	Lint(ctx context.Context, projectID int, file, content string) error
	CancelRunningPipelines(ctx context.Context, projectID int, ref string) ([]int, error)
	CreatePipeline(ctx context.Context, projectID int, ref string) (*gitlab.Pipeline, error)
	GetPipeline(ctx context.Context, projectID, pipelineID int) (*gitlab.Pipeline, error)
	ListPipelineJobs(ctx context.Context, projectID, pipelineID int) ([]*gitlab.Job, error)
	GetJob(ctx context.Context, projectID, jobID int) (*gitlab.Job, error)
	RetryJob(ctx context.Context, projectID, jobID int) (*gitlab.Job, error)
	GetRawFile(ctx context.Context, projectID int, path, ref string) ([]byte, error)
}

type gitLabClient struct {
	api    *gitlab.Client
	logger *slog.Logger
}

// NewClient builds a Client from the gitlab section of the configuration.
// GET responses are revalidated through an in-memory HTTP cache.
func NewClient(cfg config.GitLabConfig, logger *slog.Logger) (Client, error) {
	httpClient := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: httpcache.NewMemoryCacheTransport(),
	}
	return NewClientWithHTTP(cfg.URL, cfg.Token, httpClient, logger)
}

// NewClientWithHTTP is NewClient with an explicit HTTP client.
func NewClientWithHTTP(baseURL, token string, httpClient *http.Client, logger *slog.Logger) (Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	// Retries belong to the task layer.
	api, err := gitlab.NewClient(token,
		gitlab.WithBaseURL(baseURL),
		gitlab.WithHTTPClient(httpClient),
		gitlab.WithoutRetries(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitlab client for %s: %w", baseURL, err)
	}
	return &gitLabClient{api: api, logger: logger}, nil
}

// wrap converts a go-gitlab failure into a RemoteAPIError carrying the HTTP status.
func wrap(op string, resp *gitlab.Response, err error) error {
	if err == nil {
		return nil
	}
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	var errResp *gitlab.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		status = errResp.Response.StatusCode
	}
	return core.NewRemoteAPIError(service, op, status, err)
}

// IsNotFound reports whether err is a GitLab 404.
func IsNotFound(err error) bool {
	var remote *core.RemoteAPIError
	return errors.As(err, &remote) && remote.StatusCode == http.StatusNotFound
}

// EnsureProject returns namespace/name, creating it when it does not exist yet.
func (c *gitLabClient) EnsureProject(ctx context.Context, namespace, name string, settings ProjectSettings) (*gitlab.Project, error) {
	path := namespace + "/" + name
	project, err := c.GetProject(ctx, path)
	if err == nil {
		return project, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	ns, resp, err := c.api.Namespaces.GetNamespace(namespace, gitlab.WithContext(ctx))
	if err != nil {
		return nil, wrap("get namespace "+namespace, resp, err)
	}

	opts := &gitlab.CreateProjectOptions{
		Name:                 gitlab.String(name),
		Path:                 gitlab.String(name),
		NamespaceID:          gitlab.Int(ns.ID),
		Visibility:           gitlab.Visibility(gitlab.VisibilityValue(settings.Visibility)),
		SharedRunnersEnabled: gitlab.Bool(settings.SharedRunners),
		InitializeWithReadme: gitlab.Bool(true),
	}
	if settings.DefaultBranch != "" {
		opts.DefaultBranch = gitlab.String(settings.DefaultBranch)
	}
	project, resp, err = c.api.Projects.CreateProject(opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, wrap("create project "+path, resp, err)
	}
	c.logger.Info("created mirror project", "project", path, "project_id", project.ID)
	return project, nil
}

// GetProject looks a project up by numeric id or full path.
func (c *gitLabClient) GetProject(ctx context.Context, pid any) (*gitlab.Project, error) {
	project, resp, err := c.api.Projects.GetProject(pid, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, wrap(fmt.Sprintf("get project %v", pid), resp, err)
	}
	return project, nil
}

// SetVariables creates or updates project variables. Unchanged values are left alone.
func (c *gitLabClient) SetVariables(ctx context.Context, projectID int, vars map[string]string) error {
	for key, value := range vars {
		current, resp, err := c.api.ProjectVariables.GetVariable(projectID, key, nil, gitlab.WithContext(ctx))
		switch {
		case err == nil && current.Value == value:
			continue
		case err == nil:
			_, resp, err = c.api.ProjectVariables.UpdateVariable(projectID, key, &gitlab.UpdateProjectVariableOptions{
				Value: gitlab.String(value),
			}, gitlab.WithContext(ctx))
			if err != nil {
				return wrap("update variable "+key, resp, err)
			}
		default:
			if wrapped := wrap("get variable "+key, resp, err); !IsNotFound(wrapped) {
				return wrapped
			}
			_, resp, err = c.api.ProjectVariables.CreateVariable(projectID, &gitlab.CreateProjectVariableOptions{
				Key:   gitlab.String(key),
				Value: gitlab.String(value),
			}, gitlab.WithContext(ctx))
			if err != nil {
				return wrap("create variable "+key, resp, err)
			}
		}
	}
	return nil
}

// GetVariable returns the value of a project variable.
func (c *gitLabClient) GetVariable(ctx context.Context, projectID int, key string) (string, error) {
	v, resp, err := c.api.ProjectVariables.GetVariable(projectID, key, nil, gitlab.WithContext(ctx))
	if err != nil {
		return "", wrap("get variable "+key, resp, err)
	}
	return v.Value, nil
}

// Lint validates content with the project's CI lint endpoint.
func (c *gitLabClient) Lint(ctx context.Context, projectID int, file, content string) error {
	result, resp, err := c.api.Validate.ProjectNamespaceLint(projectID, &gitlab.ProjectNamespaceLintOptions{
		Content: gitlab.String(content),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return wrap("lint", resp, err)
	}
	if !result.Valid {
		return &core.DescriptorLintError{File: file, Messages: result.Errors}
	}
	return nil
}

// activeStates are the pipeline states a newer pipeline supersedes.
var activeStates = []gitlab.BuildStateValue{
	gitlab.Created,
	"waiting_for_resource",
	"preparing",
	gitlab.Pending,
	gitlab.Running,
}

// CancelRunningPipelines cancels every pipeline of ref that has not finished
// and returns the ids it cancelled. A failed cancel does not stop the others;
// all failures are returned together.
func (c *gitLabClient) CancelRunningPipelines(ctx context.Context, projectID int, ref string) ([]int, error) {
	var (
		cancelled []int
		errs      []error
	)
	seen := map[int]bool{}
	for _, state := range activeStates {
		pipelines, resp, err := c.api.Pipelines.ListProjectPipelines(projectID, &gitlab.ListProjectPipelinesOptions{
			Ref:    gitlab.String(ref),
			Status: gitlab.BuildState(state),
		}, gitlab.WithContext(ctx))
		if err != nil {
			errs = append(errs, wrap(fmt.Sprintf("list %s pipelines", state), resp, err))
			continue
		}
		for _, p := range pipelines {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			if _, resp, err := c.api.Pipelines.CancelPipelineBuild(projectID, p.ID, gitlab.WithContext(ctx)); err != nil {
				errs = append(errs, wrap(fmt.Sprintf("cancel pipeline %d", p.ID), resp, err))
				continue
			}
			cancelled = append(cancelled, p.ID)
		}
	}
	return cancelled, errors.Join(errs...)
}

// CreatePipeline starts a pipeline on ref.
func (c *gitLabClient) CreatePipeline(ctx context.Context, projectID int, ref string) (*gitlab.Pipeline, error) {
	p, resp, err := c.api.Pipelines.CreatePipeline(projectID, &gitlab.CreatePipelineOptions{
		Ref: gitlab.String(ref),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, wrap("create pipeline on "+ref, resp, err)
	}
	return p, nil
}

func (c *gitLabClient) GetPipeline(ctx context.Context, projectID, pipelineID int) (*gitlab.Pipeline, error) {
	p, resp, err := c.api.Pipelines.GetPipeline(projectID, pipelineID, gitlab.WithContext(ctx))
	if err != nil {
		return nil, wrap(fmt.Sprintf("get pipeline %d", pipelineID), resp, err)
	}
	return p, nil
}

// ListPipelineJobs returns every job of a pipeline, following pagination.
func (c *gitLabClient) ListPipelineJobs(ctx context.Context, projectID, pipelineID int) ([]*gitlab.Job, error) {
	opts := &gitlab.ListJobsOptions{ListOptions: gitlab.ListOptions{PerPage: perPage, Page: 1}}
	var all []*gitlab.Job
	for {
		jobs, resp, err := c.api.Jobs.ListPipelineJobs(projectID, pipelineID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, wrap(fmt.Sprintf("list jobs of pipeline %d", pipelineID), resp, err)
		}
		all = append(all, jobs...)
		if resp == nil || resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

func (c *gitLabClient) GetJob(ctx context.Context, projectID, jobID int) (*gitlab.Job, error) {
	job, resp, err := c.api.Jobs.GetJob(projectID, jobID, gitlab.WithContext(ctx))
	if err != nil {
		return nil, wrap(fmt.Sprintf("get job %d", jobID), resp, err)
	}
	return job, nil
}

func (c *gitLabClient) RetryJob(ctx context.Context, projectID, jobID int) (*gitlab.Job, error) {
	job, resp, err := c.api.Jobs.RetryJob(projectID, jobID, gitlab.WithContext(ctx))
	if err != nil {
		return nil, wrap(fmt.Sprintf("retry job %d", jobID), resp, err)
	}
	return job, nil
}

// GetRawFile reads a file of the mirror at ref.
func (c *gitLabClient) GetRawFile(ctx context.Context, projectID int, path, ref string) ([]byte, error) {
	data, resp, err := c.api.RepositoryFiles.GetRawFile(projectID, path, &gitlab.GetRawFileOptions{
		Ref: gitlab.String(ref),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, wrap("get file "+path, resp, err)
	}
	return data, nil
}
