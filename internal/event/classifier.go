// Package event turns raw GitHub webhook deliveries into core.WebhookEvent values.
package event

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/go-github/v73/github"
	"github.com/google/uuid"

	"github.com/sevigo/hub2lab/internal/core"
)

const (
	headerEvent     = "X-GitHub-Event"
	headerDelivery  = "X-GitHub-Delivery"
	headerSignature = "X-Hub-Signature"
	headerSHA256    = "X-Hub-Signature-256"
)

// Classifier verifies and parses GitHub webhook deliveries.
type Classifier struct {
	secret []byte
	logger *slog.Logger
}

// NewClassifier returns a Classifier. An empty secret disables signature
// verification; every delivery is then accepted with a warning.
func NewClassifier(secret string, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if secret == "" {
		logger.Warn("no GitHub webhook secret configured, signatures will not be verified")
	}
	return &Classifier{secret: []byte(secret), logger: logger}
}

// Parse verifies the delivery signature and decodes the payload into the
// variant named by the event header.
func (c *Classifier) Parse(payload []byte, headers http.Header) (*core.WebhookEvent, error) {
	eventType := HeaderValue(headers, headerEvent)
	if eventType == "" {
		return nil, &core.UnsupportedEventError{Event: "unknown"}
	}

	if len(c.secret) == 0 {
		c.logger.Warn("accepting unsigned webhook", "event", eventType)
	} else {
		signature := HeaderValue(headers, headerSHA256)
		if signature == "" {
			signature = HeaderValue(headers, headerSignature)
		}
		if signature == "" {
			return nil, &core.SignatureError{Reason: "missing signature header"}
		}
		if !VerifySignature(payload, signature, c.secret) {
			return nil, &core.SignatureError{Reason: "signature does not match payload"}
		}
	}

	ev, err := Classify(eventType, payload)
	if err != nil {
		return nil, err
	}
	ev.DeliveryID = HeaderValue(headers, headerDelivery)
	if ev.DeliveryID == "" {
		ev.DeliveryID = uuid.NewString()
	}
	return ev, nil
}

// Classify decodes an already verified payload.
func Classify(eventType string, payload []byte) (*core.WebhookEvent, error) {
	raw, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		if strings.Contains(err.Error(), "unknown X-Github-Event") {
			return nil, &core.UnsupportedEventError{Event: eventType}
		}
		return nil, &invalidPayloadError{event: eventType, err: err}
	}

	switch e := raw.(type) {
	case *github.PushEvent:
		return fromPush(e), nil
	case *github.PullRequestEvent:
		return fromPullRequest(e), nil
	case *github.CheckRunEvent:
		return fromCheckRun(e), nil
	case *github.CheckSuiteEvent:
		return fromCheckSuite(e), nil
	case *github.IssueCommentEvent:
		return fromIssueComment(e), nil
	case *github.PingEvent:
		return &core.WebhookEvent{Kind: core.KindPing, Action: e.GetZen()}, nil
	default:
		return nil, &core.UnsupportedEventError{Event: eventType}
	}
}

func fromPush(e *github.PushEvent) *core.WebhookEvent {
	sha := e.GetHeadCommit().GetID()
	if sha == "" {
		sha = e.GetAfter()
	}
	ev := core.NewWebhookEvent(core.KindPush, e.GetRef(), sha)
	repo := e.GetRepo()
	ev.Repo = core.Repository{
		Owner:    repo.GetOwner().GetLogin(),
		Name:     repo.GetName(),
		FullName: repo.GetFullName(),
		CloneURL: repo.GetCloneURL(),
		HTMLURL:  repo.GetHTMLURL(),
	}
	if ev.Repo.Owner == "" {
		ev.Repo.Owner = repo.GetOwner().GetName()
	}
	ev.InstallationID = e.GetInstallation().GetID()
	ev.Actor = e.GetPusher().GetName()
	ev.CommitURL = e.GetHeadCommit().GetURL()
	ev.Deleted = e.GetDeleted() || (strings.Trim(e.GetAfter(), "0") == "" && e.GetHeadCommit() == nil)
	return ev
}

func fromPullRequest(e *github.PullRequestEvent) *core.WebhookEvent {
	pr := e.GetPullRequest()
	ev := core.NewWebhookEvent(core.KindPullRequest, pr.GetHead().GetRef(), pr.GetHead().GetSHA())
	ev.Action = e.GetAction()
	ev.Repo = repository(e.GetRepo())
	ev.InstallationID = e.GetInstallation().GetID()
	ev.Actor = e.GetSender().GetLogin()
	ev.PRNumber = e.GetNumber()
	if ev.PRNumber == 0 {
		ev.PRNumber = pr.GetNumber()
	}
	ev.Label = e.GetLabel().GetName()
	if pr != nil {
		ev.Labels = labelNames(pr.Labels)
	}
	ev.CommitURL = pr.GetHTMLURL()
	return ev
}

func fromCheckRun(e *github.CheckRunEvent) *core.WebhookEvent {
	run := e.GetCheckRun()
	ev := core.NewWebhookEvent(core.KindCheckRun, run.GetCheckSuite().GetHeadBranch(), run.GetHeadSHA())
	ev.Action = e.GetAction()
	ev.Repo = repository(e.GetRepo())
	ev.InstallationID = e.GetInstallation().GetID()
	ev.Actor = e.GetSender().GetLogin()
	ev.CheckRun = &core.CheckRunRef{
		ID:         run.GetID(),
		Name:       run.GetName(),
		ExternalID: run.GetExternalID(),
	}
	if action := e.GetRequestedAction(); action != nil {
		ev.CheckRun.RequestedAction = action.Identifier
	}
	return ev
}

func fromCheckSuite(e *github.CheckSuiteEvent) *core.WebhookEvent {
	suite := e.GetCheckSuite()
	ev := core.NewWebhookEvent(core.KindCheckSuite, suite.GetHeadBranch(), suite.GetHeadSHA())
	ev.Action = e.GetAction()
	ev.Repo = repository(e.GetRepo())
	ev.InstallationID = e.GetInstallation().GetID()
	ev.Actor = e.GetSender().GetLogin()
	return ev
}

func fromIssueComment(e *github.IssueCommentEvent) *core.WebhookEvent {
	ev := core.NewWebhookEvent(core.KindIssueComment, "", "")
	ev.Action = e.GetAction()
	ev.Repo = repository(e.GetRepo())
	ev.InstallationID = e.GetInstallation().GetID()
	ev.Actor = e.GetComment().GetUser().GetLogin()
	ev.AuthorAssociation = e.GetComment().GetAuthorAssociation()
	ev.CommentBody = e.GetComment().GetBody()
	if issue := e.GetIssue(); issue != nil {
		ev.Labels = labelNames(issue.Labels)
		if issue.IsPullRequest() {
			ev.PRNumber = issue.GetNumber()
			ev.CommitURL = issue.GetHTMLURL()
		}
	}
	return ev
}

func repository(repo *github.Repository) core.Repository {
	return core.Repository{
		Owner:    repo.GetOwner().GetLogin(),
		Name:     repo.GetName(),
		FullName: repo.GetFullName(),
		CloneURL: repo.GetCloneURL(),
		HTMLURL:  repo.GetHTMLURL(),
	}
}

func labelNames(labels []*github.Label) []string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		if name := l.GetName(); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// HeaderValue looks up a header without relying on canonical key casing, so
// header maps built by hand are treated the same as ones parsed by net/http.
func HeaderValue(headers http.Header, name string) string {
	if v := headers.Get(name); v != "" {
		return v
	}
	for k, values := range headers {
		if strings.EqualFold(k, name) && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}
