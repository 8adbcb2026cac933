package event

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // GitHub's legacy signature header is HMAC-SHA1
	"encoding/hex"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/hub2lab/internal/core"
)

const pushPayload = `{
  "ref": "refs/heads/main",
  "after": "0123456789abcdef0123456789abcdef01234567",
  "head_commit": {"id": "0123456789abcdef0123456789abcdef01234567", "url": "https://github.com/acme/api/commit/0123456"},
  "pusher": {"name": "octocat"},
  "repository": {
    "name": "api",
    "full_name": "acme/api",
    "clone_url": "https://github.com/acme/api.git",
    "owner": {"login": "acme", "name": "acme"}
  },
  "installation": {"id": 99}
}`

const pullRequestPayload = `{
  "action": "labeled",
  "number": 12,
  "label": {"name": "ok-to-test"},
  "pull_request": {
    "number": 12,
    "html_url": "https://github.com/acme/api/pull/12",
    "head": {"ref": "feature/x", "sha": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
    "labels": [{"name": "ok-to-test"}, {"name": "wip"}]
  },
  "repository": {"name": "api", "full_name": "acme/api", "clone_url": "https://github.com/acme/api.git", "owner": {"login": "acme"}},
  "sender": {"login": "hubot"},
  "installation": {"id": 99}
}`

const checkRunPayload = `{
  "action": "requested_action",
  "requested_action": {"identifier": "resync"},
  "check_run": {
    "id": 555,
    "name": "ffci/pipeline",
    "head_sha": "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
    "external_id": "{\"object_kind\":\"pipeline\",\"object_id\":7,\"project_id\":42}",
    "check_suite": {"head_branch": "main"}
  },
  "repository": {"name": "api", "full_name": "acme/api", "owner": {"login": "acme"}},
  "sender": {"login": "hubot"},
  "installation": {"id": 99}
}`

const issueCommentPayload = `{
  "action": "created",
  "issue": {
    "number": 12,
    "html_url": "https://github.com/acme/api/pull/12",
    "pull_request": {"url": "https://api.github.com/repos/acme/api/pulls/12"},
    "labels": [{"name": "lgtm"}]
  },
  "comment": {"body": "/retest", "author_association": "MEMBER", "user": {"login": "octocat"}},
  "repository": {"name": "api", "full_name": "acme/api", "owner": {"login": "acme"}},
  "installation": {"id": 99}
}`

func sign(body []byte, secret string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return "sha1=" + hex.EncodeToString(mac.Sum(nil))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		payload   string
		check     func(t *testing.T, ev *core.WebhookEvent)
	}{
		{
			name:      "push",
			eventType: "push",
			payload:   pushPayload,
			check: func(t *testing.T, ev *core.WebhookEvent) {
				assert.Equal(t, core.KindPush, ev.Kind)
				ref, _ := ev.RefName()
				assert.Equal(t, "main", ref)
				sha, _ := ev.HeadSHA()
				assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", sha)
				assert.Equal(t, int64(99), ev.InstallationID)
				assert.Equal(t, "octocat", ev.Actor)
				assert.Equal(t, "https://github.com/acme/api.git", ev.Repo.CloneURL)
				assert.False(t, ev.Deleted)
			},
		},
		{
			name:      "branch deletion",
			eventType: "push",
			payload: `{
				"ref": "refs/heads/main",
				"before": "0123456789abcdef0123456789abcdef01234567",
				"after": "0000000000000000000000000000000000000000",
				"deleted": true,
				"head_commit": null,
				"repository": {"name": "api", "full_name": "acme/api", "owner": {"login": "acme"}},
				"installation": {"id": 99},
				"pusher": {"name": "octocat"}
			}`,
			check: func(t *testing.T, ev *core.WebhookEvent) {
				assert.True(t, ev.Deleted)
				ref, _ := ev.RefName()
				assert.Equal(t, "main", ref)
			},
		},
		{
			name:      "branch deletion without deleted flag",
			eventType: "push",
			payload: `{
				"ref": "refs/heads/main",
				"after": "0000000000000000000000000000000000000000",
				"repository": {"name": "api", "full_name": "acme/api", "owner": {"login": "acme"}}
			}`,
			check: func(t *testing.T, ev *core.WebhookEvent) {
				assert.True(t, ev.Deleted)
			},
		},
		{
			name:      "pull request labeled",
			eventType: "pull_request",
			payload:   pullRequestPayload,
			check: func(t *testing.T, ev *core.WebhookEvent) {
				assert.Equal(t, "labeled", ev.Action)
				assert.Equal(t, "ok-to-test", ev.Label)
				assert.Equal(t, []string{"ok-to-test", "wip"}, ev.Labels)
				target, err := ev.TargetRef()
				require.NoError(t, err)
				assert.Equal(t, "pr-12-feature/x", target)
			},
		},
		{
			name:      "check run requested action",
			eventType: "check_run",
			payload:   checkRunPayload,
			check: func(t *testing.T, ev *core.WebhookEvent) {
				require.NotNil(t, ev.CheckRun)
				assert.Equal(t, int64(555), ev.CheckRun.ID)
				assert.Equal(t, "resync", ev.CheckRun.RequestedAction)
				ref, _ := ev.Ref()
				assert.Equal(t, "main", ref)
			},
		},
		{
			name:      "issue comment on pull request",
			eventType: "issue_comment",
			payload:   issueCommentPayload,
			check: func(t *testing.T, ev *core.WebhookEvent) {
				assert.Equal(t, 12, ev.PRNumber)
				assert.Equal(t, "/retest", ev.CommentBody)
				assert.Equal(t, "MEMBER", ev.AuthorAssociation)
				assert.Equal(t, []string{"lgtm"}, ev.Labels)
			},
		},
		{
			name:      "ping",
			eventType: "ping",
			payload:   `{"zen": "Keep it logically awesome."}`,
			check: func(t *testing.T, ev *core.WebhookEvent) {
				assert.Equal(t, core.KindPing, ev.Kind)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Classify(tt.eventType, []byte(tt.payload))
			require.NoError(t, err)
			tt.check(t, ev)
		})
	}
}

func TestClassify_Errors(t *testing.T) {
	_, err := Classify("deployment_status_unknown", []byte(`{}`))
	var unsupported *core.UnsupportedEventError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, http.StatusNotImplemented, core.HTTPStatusOf(err))

	_, err = Classify("push", []byte(`{not json`))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, core.HTTPStatusOf(err))
}

func TestClassifier_Parse(t *testing.T) {
	const secret = "s3cr3t"
	body := []byte(pushPayload)

	tests := []struct {
		name      string
		secret    string
		headers   http.Header
		wantErr   bool
		wantSigEr bool
	}{
		{
			name:   "valid signature",
			secret: secret,
			headers: http.Header{
				"X-Github-Event":    {"push"},
				"X-Github-Delivery": {"d-1"},
				"X-Hub-Signature":   {sign(body, secret)},
			},
		},
		{
			name:   "lower case header keys",
			secret: secret,
			headers: http.Header{
				"x-github-event":  {"push"},
				"x-hub-signature": {sign(body, secret)},
			},
		},
		{
			name:      "wrong signature",
			secret:    secret,
			headers:   http.Header{"X-Github-Event": {"push"}, "X-Hub-Signature": {sign(body, "other")}},
			wantErr:   true,
			wantSigEr: true,
		},
		{
			name:      "missing signature",
			secret:    secret,
			headers:   http.Header{"X-Github-Event": {"push"}},
			wantErr:   true,
			wantSigEr: true,
		},
		{
			name:    "no secret configured accepts unsigned delivery",
			secret:  "",
			headers: http.Header{"X-Github-Event": {"push"}},
		},
		{
			name:    "missing event header",
			secret:  "",
			headers: http.Header{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(tt.secret, nil)
			ev, err := c.Parse(body, tt.headers)
			if tt.wantErr {
				require.Error(t, err)
				var sigErr *core.SignatureError
				assert.Equal(t, tt.wantSigEr, errors.As(err, &sigErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, core.KindPush, ev.Kind)
			assert.NotEmpty(t, ev.DeliveryID)
		})
	}
}

func TestVerifySignature_DetectsTampering(t *testing.T) {
	secret := []byte("topsecret")
	body := []byte(`{"ref":"refs/heads/main"}`)
	signature := sign(body, string(secret))

	require.True(t, VerifySignature(body, signature, secret))

	for i := range body {
		tampered := append([]byte(nil), body...)
		tampered[i] ^= 0x01
		assert.False(t, VerifySignature(tampered, signature, secret), "body byte %d", i)
	}

	prefix := len("sha1=")
	for i := prefix; i < len(signature); i++ {
		sig := []byte(signature)
		if sig[i] == 'a' {
			sig[i] = 'b'
		} else {
			sig[i] = 'a'
		}
		assert.False(t, VerifySignature(body, string(sig), secret), "signature byte %d", i)
	}

	assert.False(t, VerifySignature(body, "", secret))
	assert.False(t, VerifySignature(body, signature, nil))
}
