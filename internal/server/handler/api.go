package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sevigo/hub2lab/internal/core"
	"github.com/sevigo/hub2lab/internal/jobs"
)

// Version is set at build time.
var Version = "dev"

// APIHandler serves the resync, status and info endpoints.
type APIHandler struct {
	context    string
	dispatcher core.TaskDispatcher
	tasks      *jobs.Factory
	logger     *slog.Logger
}

// NewAPIHandler creates an APIHandler.
func NewAPIHandler(checkContext string, dispatcher core.TaskDispatcher, tasks *jobs.Factory, logger *slog.Logger) *APIHandler {
	return &APIHandler{context: checkContext, dispatcher: dispatcher, tasks: tasks, logger: logger}
}

// Resync schedules a resync of /resync/{project}/{pipeline}.
func (h *APIHandler) Resync(w http.ResponseWriter, r *http.Request) {
	projectID, err := positiveParam(r, "project")
	if err != nil {
		writeError(w, err)
		return
	}
	pipelineID, err := positiveParam(r, "pipeline")
	if err != nil {
		writeError(w, err)
		return
	}
	h.submit(w, r, h.tasks.ResyncPipeline(projectID, pipelineID))
}

type statusRequest struct {
	ProjectID  int `json:"project_id"`
	BuildID    int `json:"build_id"`
	PipelineID int `json:"pipeline_id"`
}

// GitHubStatus schedules a status update requested from inside a CI job
// through FAILFASTCI_STATUS_API.
func (h *APIHandler) GitHubStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, &invalidRequestError{msg: "invalid JSON body: " + err.Error()})
		return
	}
	if req.ProjectID <= 0 || (req.BuildID <= 0 && req.PipelineID <= 0) {
		writeError(w, &invalidRequestError{msg: "project_id and one of build_id or pipeline_id are required"})
		return
	}
	kind, id := core.ObjectBuild, req.BuildID
	if id <= 0 {
		kind, id = core.ObjectPipeline, req.PipelineID
	}
	h.submit(w, r, h.tasks.StatusUpdate(req.ProjectID, kind, id, ""))
}

// Info describes the running service.
func (h *APIHandler) Info(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "hub2lab",
		"version": Version,
		"context": h.context,
	})
}

func (h *APIHandler) submit(w http.ResponseWriter, r *http.Request, task core.Task) {
	if err := h.dispatcher.Submit(r.Context(), task); err != nil {
		h.logger.Error("failed to schedule task", "task", task.Name(), "error", err)
		writeError(w, err)
		return
	}
	accepted(w, task)
}

func positiveParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, &invalidRequestError{msg: name + " must be a positive integer, got " + strconv.Quote(raw)}
	}
	return id, nil
}

// invalidRequestError is a malformed API request.
type invalidRequestError struct {
	msg string
}

var _ core.CodedError = (*invalidRequestError)(nil)

func (e *invalidRequestError) Error() string           { return e.msg }
func (e *invalidRequestError) Code() string            { return core.CodeInvalidUsage }
func (e *invalidRequestError) HTTPStatus() int         { return http.StatusBadRequest }
func (e *invalidRequestError) Retryable() bool         { return false }
func (e *invalidRequestError) Details() map[string]any { return nil }
