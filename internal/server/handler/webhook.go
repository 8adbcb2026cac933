package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sevigo/hub2lab/internal/config"
	"github.com/sevigo/hub2lab/internal/core"
	"github.com/sevigo/hub2lab/internal/event"
	"github.com/sevigo/hub2lab/internal/jobs"
	"github.com/sevigo/hub2lab/internal/policy"
	"github.com/sevigo/hub2lab/internal/status"
)

// Check-run actions handled by the bridge.
const (
	actionRerequested     = "rerequested"
	actionRequestedAction = "requested_action"
)

// WebhookHandler processes incoming webhooks from GitHub.
type WebhookHandler struct {
	classifier *event.Classifier
	rules      config.RulesConfig
	dispatcher core.TaskDispatcher
	tasks      *jobs.Factory
	limiter    *RateLimiter
	logger     *slog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(cfg *config.Config, classifier *event.Classifier, dispatcher core.TaskDispatcher, tasks *jobs.Factory, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		classifier: classifier,
		rules:      cfg.Rules,
		dispatcher: dispatcher,
		tasks:      tasks,
		limiter:    NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst),
		logger:     logger,
	}
}

// Handle processes GitHub webhook requests. Errors found before a task is
// scheduled are returned to the caller; everything after is reported on GitHub.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, ok := readBody(r, w, h.logger)
	if !ok {
		return
	}

	ev, err := h.classifier.Parse(payload, r.Header)
	if err != nil {
		h.logger.Warn("rejected webhook", "error", err, "event", event.HeaderValue(r.Header, "X-GitHub-Event"))
		writeError(w, err)
		return
	}
	logger := h.logger.With("event", ev.Kind, "delivery", ev.DeliveryID, "repo", ev.Repo.FullName)

	if ev.Kind == core.KindPing {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}
	if !h.limiter.Allow(ev.InstallationID) {
		logger.Warn("webhook rate limited", "installation_id", ev.InstallationID)
		writeRateLimited(w)
		return
	}

	task, reason, err := h.route(ev)
	if err != nil {
		logger.Info("webhook refused", "error", err)
		writeError(w, err)
		return
	}
	if task == nil {
		logger.Debug("webhook ignored", "reason", reason)
		ignored(w, reason)
		return
	}

	if err := h.dispatcher.Submit(r.Context(), task); err != nil {
		logger.Error("failed to schedule task", "task", task.Name(), "error", err)
		writeError(w, err)
		return
	}
	logger.Info("task scheduled", "task", task.Name(), "key", task.Key())
	accepted(w, task)
}

// route picks the task for ev. A nil task with a reason means the event is
// ignored.
func (h *WebhookHandler) route(ev *core.WebhookEvent) (core.Task, string, error) {
	switch ev.Kind {
	case core.KindCheckRun:
		return h.routeCheckRun(ev)
	case core.KindCheckSuite:
		if ev.Action != actionRerequested {
			return nil, fmt.Sprintf("check_suite %s", ev.Action), nil
		}
		return h.tasks.Sync(ev), "", nil
	}

	d := policy.Decide(ev, h.rules)
	if err := d.Err(); err != nil {
		return nil, "", err
	}
	if !d.Run {
		return nil, d.Reason, nil
	}
	return h.tasks.Sync(ev), "", nil
}

func (h *WebhookHandler) routeCheckRun(ev *core.WebhookEvent) (core.Task, string, error) {
	run := ev.CheckRun
	if run == nil || run.ExternalID == "" {
		return nil, "check run was not created by hub2lab", nil
	}
	if ev.Action != actionRerequested && ev.Action != actionRequestedAction {
		return nil, fmt.Sprintf("check_run %s", ev.Action), nil
	}
	corr, err := core.DecodeCorrelation(run.ExternalID)
	if err != nil {
		return nil, "", err
	}
	target := status.Target{Repo: ev.Repo.FullName, InstallationID: ev.InstallationID}

	identifier := status.ActionRetry.Identifier
	if ev.Action == actionRequestedAction {
		identifier = run.RequestedAction
	}
	switch identifier {
	case status.ActionRetry.Identifier:
		return h.tasks.Retry(target, corr, ev.Actor), "", nil
	case status.ActionSkip.Identifier:
		return h.tasks.Skip(target, run.ID, run.Name, ev.Actor), "", nil
	case status.ActionResync.Identifier:
		return h.tasks.Resync(target, corr, run.ID), "", nil
	}
	return nil, "", &core.UnsupportedEventError{Event: string(ev.Kind), Field: "requested action " + identifier}
}
