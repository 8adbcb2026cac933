package event

import (
	"fmt"
	"net/http"

	"github.com/sevigo/hub2lab/internal/core"
)

// invalidPayloadError reports a body that could not be decoded for its event type.
type invalidPayloadError struct {
	event string
	err   error
}

var _ core.CodedError = (*invalidPayloadError)(nil)

func (e *invalidPayloadError) Error() string {
	return fmt.Sprintf("could not parse %s payload: %v", e.event, e.err)
}
func (e *invalidPayloadError) Unwrap() error           { return e.err }
func (e *invalidPayloadError) Code() string            { return core.CodeInvalidUsage }
func (e *invalidPayloadError) HTTPStatus() int         { return http.StatusBadRequest }
func (e *invalidPayloadError) Retryable() bool         { return false }
func (e *invalidPayloadError) Details() map[string]any { return map[string]any{"event": e.event} }
