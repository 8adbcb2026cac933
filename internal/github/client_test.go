package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-github/v73/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/hub2lab/internal/core"
)

func apiClient(t *testing.T, mux *http.ServeMux) Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client, err := github.NewClient(nil).WithEnterpriseURLs(srv.URL, srv.URL)
	require.NoError(t, err)
	return NewGitHubClient(client, nil)
}

func TestGitHubClient_CreateStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/repos/acme/api/statuses/abc123", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "success", body["state"])
		assert.Equal(t, "ffci/pipeline", body["context"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1,"state":"success","context":"ffci/pipeline"}`))
	})

	created, err := apiClient(t, mux).CreateStatus(context.Background(), "acme", "api", "abc123", github.RepoStatus{
		State:   github.Ptr("success"),
		Context: github.Ptr("ffci/pipeline"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.GetID())
}

func TestGitHubClient_CreateStatusError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/repos/acme/api/statuses/abc123", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := apiClient(t, mux).CreateStatus(context.Background(), "acme", "api", "abc123", github.RepoStatus{State: github.Ptr("error")})
	require.Error(t, err)
	var remote *core.RemoteAPIError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusBadGateway, remote.StatusCode)
	assert.True(t, core.IsRetryable(err))
}
