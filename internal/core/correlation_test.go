package core

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelation_RoundTrip(t *testing.T) {
	cases := []ExternalCorrelation{
		{Kind: ObjectPipeline, ObjectID: 7, ProjectID: 42},
		{Kind: ObjectBuild, ObjectID: 1001, ProjectID: 42, SourceRef: "main", SourceSHA: "abc", InstallationID: 99},
		{Kind: ObjectPipeline, ObjectID: 0, ProjectID: 1, SourceRef: "feature/x", SourcePRID: 12, SourceSHA: "def"},
	}

	for _, c := range cases {
		encoded, err := c.Encode()
		require.NoError(t, err)

		decoded, err := DecodeCorrelation(encoded)
		require.NoError(t, err)
		assert.Equal(t, c, decoded)
	}
}

func TestDecodeCorrelation_Garbage(t *testing.T) {
	inputs := []string{
		"",
		"not json",
		`{"object_kind":"deployment","project_id":1}`,
		`{"object_kind":"build","project_id":0}`,
		`[1,2,3]`,
	}
	for _, in := range inputs {
		_, err := DecodeCorrelation(in)
		var decodeErr *CorrelationDecodeError
		require.ErrorAs(t, err, &decodeErr, "input %q", in)
		assert.False(t, IsRetryable(err))
		assert.Equal(t, http.StatusBadRequest, HTTPStatusOf(err))
	}
}

func TestCorrelation_EncodeRejectsInvalid(t *testing.T) {
	_, err := ExternalCorrelation{Kind: "job", ProjectID: 1}.Encode()
	assert.Error(t, err)
}

func TestRemoteAPIError_Retryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{0, true},
		{500, true},
		{503, true},
		{404, false},
		{422, false},
	}
	for _, tt := range tests {
		err := NewRemoteAPIError("gitlab", "get project", tt.status, assert.AnError)
		assert.Equal(t, tt.want, IsRetryable(err), "status %d", tt.status)
	}
	assert.False(t, IsRetryable(&IntegrityError{ExpectedSHA: "a", ActualSHA: "b"}))
	assert.False(t, IsRetryable(nil))
}
