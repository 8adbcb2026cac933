package github

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-github/v73/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sevigo/hub2lab/internal/core"
	"github.com/sevigo/hub2lab/mocks"
)

func TestStatusPublisher_CreateCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockGitHubClient(ctrl)
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	check := core.CheckProjection{
		Name:       "ffci/job/unit",
		HeadSHA:    "abc",
		DetailsURL: "https://gitlab.com/ffci/acme_api/-/jobs/1",
		ExternalID: `{"object_kind":"build","object_id":1,"project_id":42}`,
		Status:     core.CheckInProgress,
		StartedAt:  &started,
		Title:      "test/unit",
		Summary:    "unit/running",
		Actions:    []core.CheckAction{{Label: "retry", Description: "Retries the job", Identifier: "retry"}},
	}

	client.EXPECT().
		CreateCheckRun(gomock.Any(), "acme", "api", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, opts github.CreateCheckRunOptions) (*github.CheckRun, error) {
			assert.Equal(t, "ffci/job/unit", opts.Name)
			assert.Equal(t, "abc", opts.HeadSHA)
			assert.Equal(t, "in_progress", opts.GetStatus())
			assert.Nil(t, opts.Conclusion)
			assert.Nil(t, opts.CompletedAt)
			assert.Equal(t, started, opts.StartedAt.Time)
			assert.Equal(t, check.ExternalID, opts.GetExternalID())
			require.NotNil(t, opts.Output)
			assert.Equal(t, "test/unit", opts.Output.GetTitle())
			assert.Nil(t, opts.Output.Text)
			require.Len(t, opts.Actions, 1)
			assert.Equal(t, "retry", opts.Actions[0].Identifier)
			return &github.CheckRun{ID: github.Ptr(int64(77))}, nil
		})

	id, err := NewStatusPublisher(client).CreateCheck(context.Background(), "acme/api", check)
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)
}

func TestStatusPublisher_UpdateCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockGitHubClient(ctrl)
	done := time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC)

	client.EXPECT().
		UpdateCheckRun(gomock.Any(), "acme", "api", int64(77), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, _ int64, opts github.UpdateCheckRunOptions) (*github.CheckRun, error) {
			assert.Equal(t, "completed", opts.GetStatus())
			assert.Equal(t, "neutral", opts.GetConclusion())
			assert.Equal(t, done, opts.CompletedAt.Time)
			assert.Empty(t, opts.Actions)
			return &github.CheckRun{}, nil
		})

	err := NewStatusPublisher(client).UpdateCheck(context.Background(), "acme/api", 77, core.CheckProjection{
		Name:        "ffci/job/unit",
		Status:      core.CheckCompleted,
		Conclusion:  core.ConclusionNeutral,
		CompletedAt: &done,
		Title:       "test/unit",
		Summary:     "skipped",
	})
	require.NoError(t, err)
}

func TestStatusPublisher_PostStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockGitHubClient(ctrl)

	client.EXPECT().
		CreateStatus(gomock.Any(), "acme", "api", "abc", github.RepoStatus{
			State:       github.Ptr("error"),
			Description: github.Ptr("An error occurred in pipeline execution. boom"),
			Context:     github.Ptr("ffci/pipeline"),
		}).
		Return(&github.RepoStatus{}, nil)

	err := NewStatusPublisher(client).PostStatus(context.Background(), "acme/api", "abc", core.CommitStatus{
		State:       core.StateError,
		Description: "An error occurred in pipeline execution. boom",
		Context:     "ffci/pipeline",
	})
	require.NoError(t, err)
}

func TestStatusPublisher_InvalidRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockGitHubClient(ctrl)

	_, err := NewStatusPublisher(client).CreateCheck(context.Background(), "not-a-repo", core.CheckProjection{})
	assert.Error(t, err)
}

func TestSplitRepo(t *testing.T) {
	owner, repo, err := SplitRepo("acme/api")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "api", repo)

	for _, bad := range []string{"", "acme", "/api", "acme/"} {
		_, _, err := SplitRepo(bad)
		assert.Error(t, err, bad)
	}
}
