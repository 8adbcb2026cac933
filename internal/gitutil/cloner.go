// Package gitutil clones source repositories and pushes their mirrors.
package gitutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/sevigo/hub2lab/internal/core"
)

const (
	service = "git"

	// TargetRemote is the remote name used for the mirror.
	TargetRemote = "target"

	defaultCloneAttempts = 3
	defaultCloneTimeout  = 2 * time.Minute
	defaultRetryDelay    = time.Second

	mirrorBranch = "refs/heads/hub2lab-mirror"
)

// Client handles interacting with Git repositories.
type Client struct {
	Logger *slog.Logger
	// CloneAttempts bounds clone and fetch retries; each attempt runs under
	// CloneTimeout and attempts are RetryDelay apart.
	CloneAttempts int
	CloneTimeout  time.Duration
	RetryDelay    time.Duration
}

// NewClient returns a new Client instance.
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		Logger:        logger,
		CloneAttempts: defaultCloneAttempts,
		CloneTimeout:  defaultCloneTimeout,
		RetryDelay:    defaultRetryDelay,
	}
}

// Source names the commit to check out.
type Source struct {
	CloneURL string
	Token    string
	// Ref is the full ref fetched from origin, e.g. refs/heads/main,
	// refs/tags/v1 or refs/pull/7/head.
	Ref string
	SHA string
}

// Identity is the author and committer of mirror commits.
type Identity struct {
	Name  string
	Email string
}

// PushSpec describes where a mirror commit goes.
type PushSpec struct {
	URL      string
	Username string
	Password string
	// Ref is the full destination ref.
	Ref     string
	Options map[string]string
}

// CheckoutTemp clones src into a temporary directory, checks out src.Ref and
// verifies that HEAD is src.SHA. The returned cleanup removes the directory;
// on error the directory is already gone.
func (c *Client) CheckoutTemp(ctx context.Context, src Source) (string, func(), error) {
	dir, err := os.MkdirTemp("", "hub2lab-src-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	cleanup := func() {
		if removeErr := os.RemoveAll(dir); removeErr != nil {
			c.Logger.Error("failed to remove workspace", "path", dir, "error", removeErr)
		}
	}
	repoPath := filepath.Join(dir, "src")

	if err := c.checkout(ctx, src, repoPath); err != nil {
		cleanup()
		return "", nil, err
	}
	return repoPath, cleanup, nil
}

func (c *Client) checkout(ctx context.Context, src Source, repoPath string) error {
	if err := c.Clone(ctx, src.CloneURL, repoPath, src.Token); err != nil {
		return err
	}
	if err := c.Fetch(ctx, repoPath, src.Ref, src.Token); err != nil {
		return err
	}
	if err := c.Checkout(ctx, repoPath, "FETCH_HEAD"); err != nil {
		return err
	}
	head, err := c.GetHeadSHA(ctx, repoPath)
	if err != nil {
		return err
	}
	if head != src.SHA {
		return &core.IntegrityError{ExpectedSHA: src.SHA, ActualSHA: head}
	}
	c.Logger.InfoContext(ctx, "repository checked out", "ref", src.Ref, "sha", head)
	return nil
}

// gitFailures maps git CLI output to the HTTP status of the failure behind
// it. These failures repeat on every attempt.
var gitFailures = []struct {
	marker string
	status int
}{
	{"Authentication failed", http.StatusUnauthorized},
	{"could not read Username", http.StatusUnauthorized},
	{"returned error: 403", http.StatusForbidden},
	{"Permission denied", http.StatusForbidden},
	{"Repository not found", http.StatusNotFound},
	{"does not exist", http.StatusNotFound},
	{"couldn't find remote ref", http.StatusNotFound},
}

// commandError wraps a failed git command. Output is redacted of secret.
func commandError(op, out, secret string, err error) error {
	status := 0
	for _, f := range gitFailures {
		if strings.Contains(out, f.marker) {
			status = f.status
			break
		}
	}
	return core.NewRemoteAPIError(service, op, status, fmt.Errorf("%s: %w", Redact(out, secret), err))
}

// pushError classifies a go-git push failure.
func pushError(ref, secret string, err error) error {
	status := 0
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired):
		status = http.StatusUnauthorized
	case errors.Is(err, transport.ErrAuthorizationFailed):
		status = http.StatusForbidden
	case errors.Is(err, transport.ErrRepositoryNotFound):
		status = http.StatusNotFound
	}
	return core.NewRemoteAPIError(service, "push "+ref, status, errors.New(Redact(err.Error(), secret)))
}

// retry runs op up to CloneAttempts times with a constant delay, giving each
// attempt its own timeout. Errors that are not retryable end the loop at once.
func (c *Client) retry(ctx context.Context, what string, op func(ctx context.Context) error) error {
	attempts := c.CloneAttempts
	if attempts <= 0 {
		attempts = defaultCloneAttempts
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.RetryDelay), uint64(attempts-1)),
		ctx,
	)
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, c.CloneTimeout)
		defer cancel()
		err := op(attemptCtx)
		if err != nil && !core.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, delay time.Duration) {
		c.Logger.WarnContext(ctx, "git operation failed, retrying",
			"operation", what,
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"error", err,
		)
	})
}

// Clone clones repoURL into path with the git CLI, retrying transient failures.
func (c *Client) Clone(ctx context.Context, repoURL, path, token string) error {
	authURL, err := AuthenticatedURL(repoURL, "x-access-token", token)
	if err != nil {
		return err
	}

	c.Logger.InfoContext(ctx, "cloning repository", "url", repoURL, "path", path)
	return c.retry(ctx, "clone", func(ctx context.Context) error {
		// A failed attempt can leave a partial checkout behind.
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to reset clone path: %w", err)
		}
		cmd := exec.CommandContext(ctx, "git", "-c", "core.longpaths=true", "clone", "--no-checkout", authURL, path)
		if out, err := cmd.CombinedOutput(); err != nil {
			return commandError("clone "+repoURL, string(out), token, err)
		}
		return nil
	})
}

// Fetch fetches ref from origin into FETCH_HEAD.
func (c *Client) Fetch(ctx context.Context, path, ref, token string) error {
	c.Logger.InfoContext(ctx, "fetching ref", "ref", ref)
	return c.retry(ctx, "fetch", func(ctx context.Context) error {
		cmd := exec.CommandContext(ctx, "git", "-c", "core.longpaths=true", "fetch", "origin", "--force", ref)
		cmd.Dir = path
		if out, err := cmd.CombinedOutput(); err != nil {
			return commandError("fetch "+ref, string(out), token, err)
		}
		return nil
	})
}

// Checkout detaches the worktree at rev.
func (c *Client) Checkout(ctx context.Context, path, rev string) error {
	cmd := exec.CommandContext(ctx, "git", "-c", "core.longpaths=true", "checkout", "--force", "--detach", rev)
	cmd.Dir = path
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git checkout %s failed: %s: %w", rev, string(out), err)
	}
	return nil
}

// GetHeadSHA returns the current HEAD SHA of the repository at the given path.
func (c *Client) GetHeadSHA(_ context.Context, path string) (string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return "", fmt.Errorf("failed to open repository at %s: %w", path, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// CommitFile writes content to file in the worktree at path and commits it on
// top of HEAD. Author, committer and time are taken from who and the HEAD
// commit, so the same HEAD and content always give the same commit hash.
func (c *Client) CommitFile(path, file string, content []byte, who Identity, message string) (string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return "", fmt.Errorf("failed to open repository at %s: %w", path, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	parent, err := repo.CommitObject(head.Hash())
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD commit: %w", err)
	}

	if err := os.WriteFile(filepath.Join(path, file), content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", file, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to open worktree: %w", err)
	}
	if _, err := wt.Add(file); err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", file, err)
	}

	sig := &object.Signature{Name: who.Name, Email: who.Email, When: parent.Committer.When}
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author:            sig,
		Committer:         sig,
		AllowEmptyCommits: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to commit %s: %w", file, err)
	}
	c.Logger.Info("committed CI descriptor", "file", file, "parent", parent.Hash.String(), "commit", hash.String())
	return hash.String(), nil
}

// Push force-pushes commit to spec.Ref through the target remote. The
// credentials only travel in the request and never end up in the git config.
func (c *Client) Push(ctx context.Context, path, commit string, spec PushSpec) error {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return fmt.Errorf("failed to open repository at %s: %w", path, err)
	}

	if err := repo.DeleteRemote(TargetRemote); err != nil && !errors.Is(err, git.ErrRemoteNotFound) {
		return fmt.Errorf("failed to reset remote %s: %w", TargetRemote, err)
	}
	if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{Name: TargetRemote, URLs: []string{spec.URL}}); err != nil {
		return fmt.Errorf("failed to add remote %s: %w", TargetRemote, err)
	}

	local := plumbing.NewHashReference(plumbing.ReferenceName(mirrorBranch), plumbing.NewHash(commit))
	if err := repo.Storer.SetReference(local); err != nil {
		return fmt.Errorf("failed to create mirror branch: %w", err)
	}

	opts := &git.PushOptions{
		RemoteName: TargetRemote,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(fmt.Sprintf("+%s:%s", mirrorBranch, spec.Ref))},
		Force:      true,
		Options:    spec.Options,
	}
	if spec.Password != "" {
		opts.Auth = &githttp.BasicAuth{Username: spec.Username, Password: spec.Password}
	}

	c.Logger.InfoContext(ctx, "pushing mirror", "url", spec.URL, "ref", spec.Ref, "commit", commit)
	err = repo.PushContext(ctx, opts)
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return pushError(spec.Ref, spec.Password, err)
	}
	return nil
}

// TargetRef returns the full mirror ref for a target ref name.
func TargetRef(name string, tag bool) string {
	if tag {
		return plumbing.NewTagReferenceName(name).String()
	}
	return plumbing.NewBranchReferenceName(strings.TrimPrefix(name, "refs/heads/")).String()
}
