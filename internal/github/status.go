package github

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v73/github"

	"github.com/sevigo/hub2lab/internal/core"
)

// StatusPublisher writes check runs and commit statuses for one installation.
type StatusPublisher interface {
	CreateCheck(ctx context.Context, repo string, check core.CheckProjection) (int64, error)
	UpdateCheck(ctx context.Context, repo string, checkRunID int64, check core.CheckProjection) error
	PostStatus(ctx context.Context, repo, sha string, status core.CommitStatus) error
}

type statusPublisher struct {
	client Client
}

// NewStatusPublisher creates and returns a new instance of a statusPublisher.
func NewStatusPublisher(client Client) StatusPublisher {
	return &statusPublisher{client: client}
}

// CreateCheck creates a check run from a projection. GitHub shows the most
// recent run of a given name, so every projection is posted as a new run.
func (s *statusPublisher) CreateCheck(ctx context.Context, repo string, check core.CheckProjection) (int64, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return 0, err
	}
	opts := github.CreateCheckRunOptions{
		Name:        check.Name,
		HeadSHA:     check.HeadSHA,
		DetailsURL:  optional(check.DetailsURL),
		ExternalID:  optional(check.ExternalID),
		Status:      optional(check.Status),
		Conclusion:  optional(check.Conclusion),
		StartedAt:   timestamp(check.StartedAt),
		CompletedAt: timestamp(check.CompletedAt),
		Output:      output(check),
		Actions:     actions(check.Actions),
	}
	run, err := s.client.CreateCheckRun(ctx, owner, name, opts)
	if err != nil {
		return 0, fmt.Errorf("failed to create check run %s: %w", check.Name, err)
	}
	return run.GetID(), nil
}

// UpdateCheck rewrites an existing check run from a projection.
func (s *statusPublisher) UpdateCheck(ctx context.Context, repo string, checkRunID int64, check core.CheckProjection) error {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return err
	}
	opts := github.UpdateCheckRunOptions{
		Name:        check.Name,
		DetailsURL:  optional(check.DetailsURL),
		ExternalID:  optional(check.ExternalID),
		Status:      optional(check.Status),
		Conclusion:  optional(check.Conclusion),
		CompletedAt: timestamp(check.CompletedAt),
		Output:      output(check),
		Actions:     actions(check.Actions),
	}
	if _, err := s.client.UpdateCheckRun(ctx, owner, name, checkRunID, opts); err != nil {
		return fmt.Errorf("failed to update check run %d: %w", checkRunID, err)
	}
	return nil
}

// PostStatus posts a commit status on sha.
func (s *statusPublisher) PostStatus(ctx context.Context, repo, sha string, status core.CommitStatus) error {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return err
	}
	_, err = s.client.CreateStatus(ctx, owner, name, sha, github.RepoStatus{
		State:       github.Ptr(status.State),
		TargetURL:   optional(status.TargetURL),
		Description: optional(status.Description),
		Context:     github.Ptr(status.Context),
	})
	if err != nil {
		return fmt.Errorf("failed to post %s status %s: %w", status.Context, status.State, err)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return github.Ptr(s)
}

func timestamp(t *time.Time) *github.Timestamp {
	if t == nil {
		return nil
	}
	return &github.Timestamp{Time: *t}
}

func output(check core.CheckProjection) *github.CheckRunOutput {
	if check.Title == "" && check.Summary == "" && check.Body == "" {
		return nil
	}
	out := &github.CheckRunOutput{
		Title:   github.Ptr(check.Title),
		Summary: github.Ptr(check.Summary),
		Text:    optional(check.Body),
	}
	if check.Icon != "" {
		out.Images = []*github.CheckRunImage{{
			Alt:      github.Ptr(check.Conclusion),
			ImageURL: github.Ptr(check.Icon),
			Caption:  github.Ptr(check.Summary),
		}}
	}
	return out
}

func actions(in []core.CheckAction) []*github.CheckRunAction {
	if len(in) == 0 {
		return nil
	}
	out := make([]*github.CheckRunAction, 0, len(in))
	for _, a := range in {
		out = append(out, &github.CheckRunAction{
			Label:       a.Label,
			Description: a.Description,
			Identifier:  a.Identifier,
		})
	}
	return out
}
