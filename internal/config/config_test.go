package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		GitHub: GitHubConfig{AppID: 42, PrivateKeyPath: "key.pem"},
		GitLab: GitLabConfig{URL: "https://gitlab.com", Token: "glpat", Visibility: "private"},
		Tasks: TasksConfig{
			Retry: RetryConfig{MaxAttempts: 5},
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(_ *Config) {}},
		{name: "missing app id", mutate: func(c *Config) { c.GitHub.AppID = 0 }, wantErr: "github.app_id"},
		{
			name: "missing private key",
			mutate: func(c *Config) {
				c.GitHub.PrivateKeyPath = ""
				c.GitHub.PrivateKey = ""
			},
			wantErr: "private_key",
		},
		{name: "missing gitlab token", mutate: func(c *Config) { c.GitLab.Token = "" }, wantErr: "gitlab.token"},
		{name: "zero retry attempts", mutate: func(c *Config) { c.Tasks.Retry.MaxAttempts = 0 }, wantErr: "max_attempts"},
		{name: "unknown visibility", mutate: func(c *Config) { c.GitLab.Visibility = "secret" }, wantErr: "visibility"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HUB2LAB_GITHUB_APP_ID", "1234")
	t.Setenv("HUB2LAB_GITHUB_PRIVATE_KEY", base64.StdEncoding.EncodeToString([]byte("pem")))
	t.Setenv("HUB2LAB_GITLAB_TOKEN", "glpat-secret")
	t.Setenv("HUB2LAB_RULES_ON_BRANCHES", "main release-.*")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, int64(1234), cfg.GitHub.AppID)
	assert.Equal(t, "glpat-secret", cfg.GitLab.Token)
	assert.Equal(t, []string{"main", "release-.*"}, cfg.Rules.OnBranches)
	assert.Equal(t, "ffci", cfg.GitHub.Context)
	assert.Equal(t, "https://gitlab.com", cfg.GitLab.URL)
	assert.Equal(t, 30*time.Second, cfg.GitLab.Timeout)
	assert.Equal(t, 10, cfg.Tasks.Retry.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Tasks.Poll.InitialInterval)

	key, err := cfg.AppPrivateKey()
	require.NoError(t, err)
	assert.Equal(t, []byte("pem"), key)
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	content := `
github:
  app_id: 7
  private_key_path: app.pem
  context: ci/
gitlab:
  token: abc
  namespace: mirrors
rules:
  on_branches: ["main", "tags"]
  exclusive_labels:
    ok-to-test: ["wip", "do-not-merge"]
  required_labels:
    - ["lgtm", "approved"]
    - ["ok-to-test"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "ci", cfg.GitHub.Context)
	assert.Equal(t, "mirrors", cfg.GitLab.Namespace)
	assert.Equal(t, []string{"main", "tags"}, cfg.Rules.OnBranches)
	assert.Equal(t, []string{"wip", "do-not-merge"}, cfg.Rules.ExclusiveLabels["ok-to-test"])
	assert.Equal(t, [][]string{{"lgtm", "approved"}, {"ok-to-test"}}, cfg.Rules.RequiredLabels)
}

func TestLoadDotEnv_DoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("HUB2LAB_TEST_FROM_FILE=file\nHUB2LAB_TEST_PRESET=file\n"), 0o600))
	t.Setenv("HUB2LAB_TEST_PRESET", "env")
	t.Setenv("HUB2LAB_TEST_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("HUB2LAB_TEST_FROM_FILE"))

	require.NoError(t, loadDotEnv(path))

	assert.Equal(t, "file", os.Getenv("HUB2LAB_TEST_FROM_FILE"))
	assert.Equal(t, "env", os.Getenv("HUB2LAB_TEST_PRESET"))
	assert.NoError(t, loadDotEnv(filepath.Join(dir, "missing.env")))
}
