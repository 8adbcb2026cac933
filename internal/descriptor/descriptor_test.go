package descriptor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/hub2lab/internal/core"
)

const gitlabCI = `stages: [test]
variables:
  GO_VERSION: "1.22"
  RETRIES: 3
  EXTENDED:
    value: "yes"
    description: extended form
unit:
  stage: test
  script: [go test ./...]
.template:
  script: [echo]
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	t.Run("gitlab ci file", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, GitLabCIFile, gitlabCI)

		d, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, GitLabCIFile, d.File)
		assert.Equal(t, []string{"unit"}, d.Jobs())
	})

	t.Run("gitlab ci file wins over jsonnet", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, GitLabCIFile, gitlabCI)
		writeFile(t, dir, JsonnetFile, `{}`)

		d, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, GitLabCIFile, d.File)
	})

	t.Run("jsonnet with import", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "lib.libsonnet", `{ job(name):: { stage: "test", script: ["make " + name] } }`)
		writeFile(t, dir, JsonnetFile, `
local lib = import "lib.libsonnet";
{
  stages: ["test"],
  variables: { DEBUG: true },
  lint: lib.job("lint"),
}`)

		d, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, JsonnetFile, d.File)
		assert.Equal(t, map[string]string{"DEBUG": "true"}, d.Variables())
		assert.Equal(t, []string{"lint"}, d.Jobs())
	})

	t.Run("no descriptor", func(t *testing.T) {
		_, err := Load(t.TempDir())
		var notFound *core.DescriptorNotFound
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, Candidates, notFound.Candidates)
	})

	t.Run("broken yaml", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, GitLabCIFile, "stages: [test\n")
		_, err := Load(dir)
		var parseErr *core.DescriptorParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, GitLabCIFile, parseErr.File)
		assert.False(t, core.IsRetryable(err))
	})

	t.Run("broken jsonnet", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, JsonnetFile, "{ a: }")
		_, err := Load(dir)
		var parseErr *core.DescriptorParseError
		require.ErrorAs(t, err, &parseErr)
	})

	t.Run("empty file", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, GitLabCIFile, "")
		_, err := Load(dir)
		var parseErr *core.DescriptorParseError
		require.ErrorAs(t, err, &parseErr)
	})
}

func TestDescriptor_Variables(t *testing.T) {
	d, err := Parse(GitLabCIFile, []byte(gitlabCI))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"GO_VERSION": "1.22",
		"RETRIES":    "3",
		"EXTENDED":   "yes",
	}, d.Variables())
}

func TestDescriptor_InjectAndRender(t *testing.T) {
	d, err := Parse(GitLabCIFile, []byte(gitlabCI))
	require.NoError(t, err)

	d.Inject(map[string]string{"SHA": "abc", "GO_VERSION": "1.23"})
	first, err := d.Render()
	require.NoError(t, err)

	reparsed, err := Parse(GitLabCIFile, first)
	require.NoError(t, err)
	vars := reparsed.Variables()
	assert.Equal(t, "abc", vars["SHA"])
	assert.Equal(t, "1.23", vars["GO_VERSION"])
	assert.Equal(t, []string{"unit"}, reparsed.Jobs())

	again, err := Parse(GitLabCIFile, []byte(gitlabCI))
	require.NoError(t, err)
	again.Inject(map[string]string{"GO_VERSION": "1.23", "SHA": "abc"})
	second, err := again.Render()
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestDescriptor_InjectWithoutVariablesBlock(t *testing.T) {
	d, err := Parse(GitLabCIFile, []byte("build:\n  script: [make]\n"))
	require.NoError(t, err)
	d.Inject(map[string]string{"EVENT": "push"})
	assert.Equal(t, map[string]string{"EVENT": "push"}, d.Variables())
}

func TestDestination(t *testing.T) {
	tests := []struct {
		name        string
		vars        map[string]string
		wantNS      string
		wantProject string
	}{
		{name: "defaults", vars: nil, wantNS: "ffci", wantProject: "acme_api"},
		{name: "namespace override", vars: map[string]string{VarNamespace: "team"}, wantNS: "team", wantProject: "acme_api"},
		{
			name:        "repository override",
			vars:        map[string]string{VarNamespace: "team", VarRepository: "infra/api-mirror"},
			wantNS:      "infra",
			wantProject: "api-mirror",
		},
		{
			name:        "nested namespace",
			vars:        map[string]string{VarRepository: "infra/ci/api"},
			wantNS:      "infra/ci",
			wantProject: "api",
		},
		{name: "bare project name", vars: map[string]string{VarRepository: "api"}, wantNS: "ffci", wantProject: "api"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ns, project := Destination(tt.vars, "ffci", "acme/api")
			assert.Equal(t, tt.wantNS, ns)
			assert.Equal(t, tt.wantProject, project)
		})
	}
}

func TestInjectedVariables(t *testing.T) {
	src := Source{
		Event:          core.KindPullRequest,
		PRNumber:       12,
		SHA:            "0123456789abcdef",
		RefName:        "feature",
		TargetRef:      "pr-12-feature",
		InstallationID: 99,
		Repo:           "acme/api",
	}
	corr := core.ExternalCorrelation{
		Kind:           core.ObjectPipeline,
		ProjectID:      42,
		SourceRef:      "feature",
		SourcePRID:     12,
		SourceSHA:      src.SHA,
		InstallationID: 99,
	}

	vars, err := InjectedVariables(src, corr, "https://ffci.example.com")
	require.NoError(t, err)
	assert.Equal(t, "pull_request", vars[VarEvent])
	assert.Equal(t, "12", vars[VarPRID])
	assert.Equal(t, "01234567", vars[VarSHA8])
	assert.Equal(t, "pr-12-feature", vars[VarCIRef])
	assert.Equal(t, "99", vars[VarInstallationID])
	assert.Equal(t, "https://ffci.example.com/api/v1/github_status", vars[VarStatusAPI])

	recovered, err := CorrelationFromVariables(vars, 42)
	require.NoError(t, err)
	assert.Equal(t, corr, recovered)

	assert.Equal(t, map[string]string{VarInstallationID: "99", VarGitHubRepo: "acme/api"}, ProjectVariables(src))
}

func TestCorrelationFromVariables_Fallback(t *testing.T) {
	corr, err := CorrelationFromVariables(map[string]string{
		VarSHA:            "abc",
		VarSourceRef:      "main",
		VarPRID:           "",
		VarInstallationID: "7",
	}, 42)
	require.NoError(t, err)
	assert.Equal(t, core.ExternalCorrelation{
		Kind:           core.ObjectPipeline,
		ProjectID:      42,
		SourceRef:      "main",
		SourceSHA:      "abc",
		InstallationID: 7,
	}, corr)

	_, err = CorrelationFromVariables(map[string]string{}, 42)
	var decodeErr *core.CorrelationDecodeError
	require.ErrorAs(t, err, &decodeErr)

	_, err = CorrelationFromVariables(map[string]string{VarCorrelation: "garbage"}, 42)
	require.ErrorAs(t, err, &decodeErr)
}
