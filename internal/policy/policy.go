// Package policy decides whether a classified GitHub event starts a pipeline.
package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/sevigo/hub2lab/internal/config"
	"github.com/sevigo/hub2lab/internal/core"
)

// Outcome is the kind of decision taken for an event.
type Outcome string

const (
	OutcomeRun          Outcome = "run"
	OutcomeIgnored      Outcome = "ignored"
	OutcomeUnauthorized Outcome = "unauthorized"
)

// tagsKey in the branch list enables pipelines for every tag push.
const tagsKey = "tags"

const wildcard = "*"

// Decision is the result of Decide.
type Decision struct {
	Run     bool
	Reason  string
	Outcome Outcome
	Actor   string
}

// Err returns a PolicyUnauthorized error for unauthorized decisions and nil otherwise.
func (d Decision) Err() error {
	if d.Outcome != OutcomeUnauthorized {
		return nil
	}
	return &core.PolicyUnauthorized{Reason: d.Reason, Actor: d.Actor}
}

func run(reason string) Decision {
	return Decision{Run: true, Reason: reason, Outcome: OutcomeRun}
}

func ignore(reason string) Decision {
	return Decision{Reason: reason, Outcome: OutcomeIgnored}
}

func unauthorized(reason, actor string) Decision {
	return Decision{Reason: reason, Outcome: OutcomeUnauthorized, Actor: actor}
}

// Decide evaluates the trigger rules against ev. It has no side effects and
// returns the same decision for the same inputs.
func Decide(ev *core.WebhookEvent, rules config.RulesConfig) Decision {
	if ev == nil {
		return ignore("no event")
	}

	var d Decision
	switch ev.Kind {
	case core.KindPush:
		d = onPush(ev, rules)
	case core.KindPullRequest:
		d = onPullRequest(ev, rules)
	case core.KindIssueComment:
		d = onComment(ev, rules)
	default:
		return ignore(fmt.Sprintf("%s events do not start pipelines", ev.Kind))
	}

	if d.Run && gated(ev) && !hasRequiredLabels(ev.Labels, rules.RequiredLabels) {
		return unauthorized("missing required labels", ev.Actor)
	}
	return d
}

func onPush(ev *core.WebhookEvent, rules config.RulesConfig) Decision {
	ref, err := ev.Ref()
	if err != nil {
		return ignore(err.Error())
	}
	if ev.Deleted {
		return ignore(fmt.Sprintf("%s was deleted", core.StripRef(ref)))
	}
	if ev.IsTag() {
		if lo.Contains(rules.OnBranches, tagsKey) {
			return run("tag push")
		}
		return ignore("tag pipelines are disabled")
	}
	name := core.StripRef(ref)
	for _, pattern := range rules.OnBranches {
		if matchBranch(pattern, name) {
			return run(fmt.Sprintf("branch %s matches %q", name, pattern))
		}
	}
	return ignore(fmt.Sprintf("branch %s is not configured", name))
}

// matchBranch matches pattern against the start of the branch name. Invalid
// patterns never match.
func matchBranch(pattern, branch string) bool {
	if pattern == tagsKey {
		return false
	}
	re, err := regexp.Compile("^(?:" + pattern + ")")
	if err != nil {
		return false
	}
	return re.MatchString(branch)
}

func onPullRequest(ev *core.WebhookEvent, rules config.RulesConfig) Decision {
	switch ev.Action {
	case "opened", "reopened", "synchronize":
		if rules.OnPullRequests {
			return run("pull request " + ev.Action)
		}
		return ignore("pull request pipelines are disabled")
	case "labeled":
		if !lo.Contains(rules.OnLabels, ev.Label) {
			return ignore(fmt.Sprintf("label %q does not trigger pipelines", ev.Label))
		}
		exclusive := rules.ExclusiveLabels[ev.Label]
		if conflicting := lo.Intersect(exclusive, ev.Labels); len(conflicting) > 0 {
			return ignore(fmt.Sprintf("label %q is vetoed by %s", ev.Label, strings.Join(conflicting, ", ")))
		}
		return run(fmt.Sprintf("label %q added", ev.Label))
	}
	return ignore(fmt.Sprintf("pull request action %q is ignored", ev.Action))
}

func onComment(ev *core.WebhookEvent, rules config.RulesConfig) Decision {
	if !ev.IsPullRequest() {
		return ignore("comment is not on a pull request")
	}
	if ev.Action != "" && ev.Action != "created" {
		return ignore(fmt.Sprintf("comment action %q is ignored", ev.Action))
	}
	command := strings.TrimSpace(ev.CommentBody)
	if !lo.Contains(rules.OnComments, command) {
		return ignore("comment is not a command")
	}
	if !authorized(ev.Actor, ev.AuthorAssociation, rules) {
		return unauthorized(fmt.Sprintf("%s may not run %s", ev.Actor, command), ev.Actor)
	}
	return run(fmt.Sprintf("%s requested by %s", command, ev.Actor))
}

func authorized(user, role string, rules config.RulesConfig) bool {
	if lo.Contains(rules.AuthorizedUsers, wildcard) || (user != "" && lo.Contains(rules.AuthorizedUsers, user)) {
		return true
	}
	if role == "" {
		return false
	}
	return lo.Contains(rules.AuthorizedGroups, wildcard) || lo.Contains(rules.AuthorizedGroups, role)
}

// gated reports whether the event carries a label set the required-label gate
// can be evaluated against.
func gated(ev *core.WebhookEvent) bool {
	return ev.Kind == core.KindPullRequest || ev.Kind == core.KindIssueComment
}

// hasRequiredLabels is true when labels contains at least one label of every group.
func hasRequiredLabels(labels []string, groups [][]string) bool {
	return lo.EveryBy(groups, func(group []string) bool {
		return len(group) == 0 || lo.Some(labels, group)
	})
}
