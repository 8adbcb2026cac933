// Package core defines the domain types shared by the classifier, the trigger
// policy, the synchronizer, the status reconciler and the task layer.
package core

import (
	"fmt"
	"strings"
)

// EventKind is the value of the X-GitHub-Event header for the events the
// bridge understands.
type EventKind string

const (
	KindPush         EventKind = "push"
	KindPullRequest  EventKind = "pull_request"
	KindCheckRun     EventKind = "check_run"
	KindCheckSuite   EventKind = "check_suite"
	KindIssueComment EventKind = "issue_comment"
	KindPing         EventKind = "ping"
)

const (
	branchRefPrefix = "refs/heads/"
	tagRefPrefix    = "refs/tags/"
)

// Repository identifies the source repository of an event.
type Repository struct {
	Owner    string
	Name     string
	FullName string
	CloneURL string
	HTMLURL  string
}

// CheckRunRef is the part of a check_run event needed to act on a button press.
type CheckRunRef struct {
	ID              int64
	Name            string
	ExternalID      string
	RequestedAction string
}

// WebhookEvent is the typed view of a GitHub webhook delivery. Kind selects the
// variant; fields that do not apply to a variant stay zero and the accessors
// below return UnsupportedEventError instead of defaults.
type WebhookEvent struct {
	Kind       EventKind
	DeliveryID string
	Action     string

	Repo           Repository
	InstallationID int64
	Actor          string
	// AuthorAssociation is the commenter's role on issue_comment events.
	AuthorAssociation string

	PRNumber    int
	Label       string
	Labels      []string
	CommentBody string
	CommitURL   string
	// Deleted is set on pushes that remove the ref.
	Deleted bool

	CheckRun *CheckRunRef

	ref     string
	headSHA string
}

// NewWebhookEvent returns an event of the given kind with its ref and head sha set.
func NewWebhookEvent(kind EventKind, ref, headSHA string) *WebhookEvent {
	return &WebhookEvent{Kind: kind, ref: ref, headSHA: headSHA}
}

func (e *WebhookEvent) unsupported(field string) error {
	return &UnsupportedEventError{Event: string(e.Kind), Field: field}
}

func (e *WebhookEvent) carriesSource() bool {
	switch e.Kind {
	case KindPush, KindPullRequest, KindCheckRun, KindCheckSuite, KindIssueComment:
		return true
	}
	return false
}

// Ref returns the git ref named by the event: the pushed ref, the PR head
// branch, the check suite head branch, or the resolved PR head of a comment.
func (e *WebhookEvent) Ref() (string, error) {
	if !e.carriesSource() {
		return "", e.unsupported("ref")
	}
	return e.ref, nil
}

// RefName returns the ref without its refs/heads/ or refs/tags/ prefix.
func (e *WebhookEvent) RefName() (string, error) {
	ref, err := e.Ref()
	if err != nil {
		return "", err
	}
	return StripRef(ref), nil
}

// IsTag reports whether the event points at a tag.
func (e *WebhookEvent) IsTag() bool {
	return strings.HasPrefix(e.ref, tagRefPrefix)
}

// TargetRef is the ref pushed to the mirror project: the ref name for branches
// and tags, pr-{id}-{ref} when the event belongs to a pull request.
func (e *WebhookEvent) TargetRef() (string, error) {
	name, err := e.RefName()
	if err != nil {
		return "", err
	}
	if e.PRNumber > 0 && (e.Kind == KindPullRequest || e.Kind == KindIssueComment) {
		return fmt.Sprintf("pr-%d-%s", e.PRNumber, name), nil
	}
	return name, nil
}

// HeadSHA returns the commit the event refers to.
func (e *WebhookEvent) HeadSHA() (string, error) {
	if !e.carriesSource() {
		return "", e.unsupported("head sha")
	}
	return e.headSHA, nil
}

// CloneURL returns the HTTPS clone URL of the source repository.
func (e *WebhookEvent) CloneURL() (string, error) {
	if !e.carriesSource() {
		return "", e.unsupported("clone url")
	}
	return e.Repo.CloneURL, nil
}

// RepoFullName returns owner/name of the source repository.
func (e *WebhookEvent) RepoFullName() (string, error) {
	if !e.carriesSource() {
		return "", e.unsupported("repository")
	}
	return e.Repo.FullName, nil
}

// IsPullRequest reports whether the event is tied to a pull request.
func (e *WebhookEvent) IsPullRequest() bool {
	return e.PRNumber > 0
}

// ResolvePullRequestHead fills the head ref and sha of an issue_comment event,
// which GitHub does not include in the payload.
func (e *WebhookEvent) ResolvePullRequestHead(ref, sha, cloneURL string) {
	e.ref = ref
	e.headSHA = sha
	if cloneURL != "" {
		e.Repo.CloneURL = cloneURL
	}
}

// StripRef removes the refs/heads/ or refs/tags/ prefix from ref.
func StripRef(ref string) string {
	for _, prefix := range []string{tagRefPrefix, branchRefPrefix} {
		if strings.HasPrefix(ref, prefix) {
			return strings.TrimPrefix(ref, prefix)
		}
	}
	return ref
}
