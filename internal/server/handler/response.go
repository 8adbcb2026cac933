// Package handler provides the HTTP handlers of the hub2lab bridge.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sevigo/hub2lab/internal/core"
	"github.com/sevigo/hub2lab/internal/jobs"
)

// maxPayloadBytes is the largest webhook body GitHub delivers.
const maxPayloadBytes = 25 << 20

const (
	codeQueueFull   = "queue-full"
	codeRateLimited = "rate-limited"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err with the status and code of the error taxonomy.
func writeError(w http.ResponseWriter, err error) {
	detail := errorDetail{Code: core.CodeUnexpected, Message: err.Error()}
	status := core.HTTPStatusOf(err)

	var coded core.CodedError
	switch {
	case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrStopped):
		status, detail.Code = http.StatusServiceUnavailable, codeQueueFull
	case errors.As(err, &coded):
		detail.Code = coded.Code()
		detail.Details = coded.Details()
	}
	writeJSON(w, status, errorBody{Error: detail})
}

func writeRateLimited(w http.ResponseWriter) {
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: errorDetail{
		Code:    codeRateLimited,
		Message: "too many webhook deliveries for this installation",
	}})
}

func accepted(w http.ResponseWriter, task core.Task) {
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"task":   task.Name(),
		"key":    task.Key(),
	})
}

func ignored(w http.ResponseWriter, reason string) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": reason})
}

func readBody(r *http.Request, w http.ResponseWriter, logger *slog.Logger) ([]byte, bool) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		logger.Error("could not read webhook body", "error", err)
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
			Code:    core.CodeInvalidUsage,
			Message: "could not read request body",
		}})
		return nil, false
	}
	return payload, true
}
