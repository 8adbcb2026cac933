package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositiveArgs(t *testing.T) {
	ids, err := positiveArgs([]string{"42", "7"})
	require.NoError(t, err)
	assert.Equal(t, []int{42, 7}, ids)

	for _, bad := range []string{"0", "-3", "abc", ""} {
		_, err := positiveArgs([]string{"42", bad})
		assert.Error(t, err, bad)
	}
}

func TestRunLint(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, ".gitlab-ci.yml")
	require.NoError(t, os.WriteFile(valid, []byte("variables:\n  A: b\nunit:\n  script: [make test]\n"), 0o600))
	broken := filepath.Join(dir, "broken.yml")
	require.NoError(t, os.WriteFile(broken, []byte("unit: [\n"), 0o600))

	lintProject = 0
	cmd := &cobra.Command{}

	assert.NoError(t, runLint(cmd, []string{valid}))
	assert.Error(t, runLint(cmd, []string{broken}))
	assert.Error(t, runLint(cmd, []string{filepath.Join(dir, "missing.yml")}))
}
