package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/xanzy/go-gitlab"

	"github.com/sevigo/hub2lab/internal/core"
	"github.com/sevigo/hub2lab/internal/jobs"
)

const headerGitLabToken = "X-Gitlab-Token"

// GitLabHandler turns GitLab pipeline and job hooks into status updates.
type GitLabHandler struct {
	secret     string
	dispatcher core.TaskDispatcher
	tasks      *jobs.Factory
	logger     *slog.Logger
}

// NewGitLabHandler creates a GitLabHandler. An empty secret accepts every hook.
func NewGitLabHandler(secret string, dispatcher core.TaskDispatcher, tasks *jobs.Factory, logger *slog.Logger) *GitLabHandler {
	if secret == "" {
		logger.Warn("no GitLab webhook secret configured, hooks will not be authenticated")
	}
	return &GitLabHandler{secret: secret, dispatcher: dispatcher, tasks: tasks, logger: logger}
}

// Handle processes GitLab webhook requests.
func (h *GitLabHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(headerGitLabToken)), []byte(h.secret)) != 1 {
		writeError(w, &core.SignatureError{Reason: "invalid " + headerGitLabToken})
		return
	}
	payload, ok := readBody(r, w, h.logger)
	if !ok {
		return
	}

	eventType := gitlab.HookEventType(r)
	hook, err := gitlab.ParseWebhook(eventType, payload)
	if err != nil {
		h.logger.Debug("ignoring gitlab hook", "type", eventType, "error", err)
		ignored(w, "unsupported gitlab event "+string(eventType))
		return
	}

	var task core.Task
	switch e := hook.(type) {
	case *gitlab.PipelineEvent:
		task = h.tasks.StatusUpdate(e.Project.ID, core.ObjectPipeline, e.ObjectAttributes.ID, e.ObjectAttributes.Status)
	case *gitlab.JobEvent:
		task = h.tasks.StatusUpdate(e.ProjectID, core.ObjectBuild, e.BuildID, e.BuildStatus)
	default:
		ignored(w, "unsupported gitlab event "+string(eventType))
		return
	}

	if err := h.dispatcher.Submit(r.Context(), task); err != nil {
		h.logger.Error("failed to schedule status update", "key", task.Key(), "error", err)
		writeError(w, err)
		return
	}
	accepted(w, task)
}
