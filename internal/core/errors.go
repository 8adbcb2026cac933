package core

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Error codes rendered in the "code" field of API error responses.
const (
	CodeInvalidUsage      = "invalid-usage"
	CodeUnauthorized      = "unauthorized-access"
	CodeForbidden         = "forbidden"
	CodeNotFound          = "resource-not-found"
	CodeInvalidParameters = "invalid-parameters"
	CodeUnexpected        = "unexpected-error"
	CodeUnsupported       = "unsupported"
)

// CodedError is implemented by every error of the bridge's taxonomy. The HTTP
// layer uses it to pick a status code and the task layer uses Retryable to
// decide between another attempt and a terminal failure status.
type CodedError interface {
	error
	Code() string
	HTTPStatus() int
	Retryable() bool
	Details() map[string]any
}

// SignatureError reports a webhook whose HMAC signature does not match the body.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string           { return "invalid webhook signature: " + e.Reason }
func (e *SignatureError) Code() string            { return CodeUnauthorized }
func (e *SignatureError) HTTPStatus() int         { return http.StatusUnauthorized }
func (e *SignatureError) Retryable() bool         { return false }
func (e *SignatureError) Details() map[string]any { return nil }

// UnsupportedEventError is returned for webhook kinds the bridge does not handle
// and for accessors invoked on a variant that does not carry the field.
type UnsupportedEventError struct {
	Event string
	Field string
}

func (e *UnsupportedEventError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("unsupported event: %s has no %s", e.Event, e.Field)
	}
	return "unsupported event: " + e.Event
}
func (e *UnsupportedEventError) Code() string    { return CodeUnsupported }
func (e *UnsupportedEventError) HTTPStatus() int { return http.StatusNotImplemented }
func (e *UnsupportedEventError) Retryable() bool { return false }
func (e *UnsupportedEventError) Details() map[string]any {
	return map[string]any{"event": e.Event}
}

// PolicyUnauthorized is a trigger veto: the actor is not allowed to start a run
// or the required-label gate failed.
type PolicyUnauthorized struct {
	Reason string
	Actor  string
}

func (e *PolicyUnauthorized) Error() string {
	return "not authorized to trigger a pipeline: " + e.Reason
}
func (e *PolicyUnauthorized) Code() string    { return CodeForbidden }
func (e *PolicyUnauthorized) HTTPStatus() int { return http.StatusForbidden }
func (e *PolicyUnauthorized) Retryable() bool { return false }
func (e *PolicyUnauthorized) Details() map[string]any {
	if e.Actor == "" {
		return nil
	}
	return map[string]any{"actor": e.Actor}
}

// IntegrityError means the checked-out HEAD is not the commit the event named.
type IntegrityError struct {
	ExpectedSHA string
	ActualSHA   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("git sha mismatch: expected %s, got %s", e.ExpectedSHA, e.ActualSHA)
}
func (e *IntegrityError) Code() string    { return CodeUnexpected }
func (e *IntegrityError) HTTPStatus() int { return http.StatusInternalServerError }
func (e *IntegrityError) Retryable() bool { return false }
func (e *IntegrityError) Details() map[string]any {
	return map[string]any{"expected_sha": e.ExpectedSHA, "sha": e.ActualSHA}
}

// DescriptorNotFound means none of the candidate CI descriptor files exist.
type DescriptorNotFound struct {
	Candidates []string
}

func (e *DescriptorNotFound) Error() string {
	return fmt.Sprintf("no CI descriptor found, looked for %v", e.Candidates)
}
func (e *DescriptorNotFound) Code() string            { return CodeNotFound }
func (e *DescriptorNotFound) HTTPStatus() int         { return http.StatusNotFound }
func (e *DescriptorNotFound) Retryable() bool         { return false }
func (e *DescriptorNotFound) Details() map[string]any { return nil }

// DescriptorParseError wraps a YAML or Jsonnet failure while reading the descriptor.
type DescriptorParseError struct {
	File string
	Err  error
}

func (e *DescriptorParseError) Error() string {
	return fmt.Sprintf("could not parse CI file %s: %v", e.File, e.Err)
}
func (e *DescriptorParseError) Unwrap() error           { return e.Err }
func (e *DescriptorParseError) Code() string            { return CodeInvalidParameters }
func (e *DescriptorParseError) HTTPStatus() int         { return http.StatusUnprocessableEntity }
func (e *DescriptorParseError) Retryable() bool         { return false }
func (e *DescriptorParseError) Details() map[string]any { return map[string]any{"file": e.File} }

// DescriptorLintError carries the CI host's lint messages verbatim.
type DescriptorLintError struct {
	File     string
	Messages []string
}

func (e *DescriptorLintError) Error() string {
	return fmt.Sprintf("%s syntax error: %v", e.File, e.Messages)
}
func (e *DescriptorLintError) Code() string    { return CodeInvalidParameters }
func (e *DescriptorLintError) HTTPStatus() int { return http.StatusUnprocessableEntity }
func (e *DescriptorLintError) Retryable() bool { return false }
func (e *DescriptorLintError) Details() map[string]any {
	return map[string]any{"file": e.File, "errors": e.Messages}
}

// RemoteAPIError wraps a failed call to GitHub, GitLab or a git remote.
// StatusCode is zero for transport failures.
type RemoteAPIError struct {
	Service    string
	Op         string
	StatusCode int
	Err        error
}

// NewRemoteAPIError builds a RemoteAPIError. Callers pass the HTTP status when
// one is known and 0 otherwise.
func NewRemoteAPIError(service, op string, statusCode int, err error) *RemoteAPIError {
	return &RemoteAPIError{Service: service, Op: op, StatusCode: statusCode, Err: err}
}

func (e *RemoteAPIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed with status %d: %v", e.Service, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Service, e.Op, e.Err)
}
func (e *RemoteAPIError) Unwrap() error { return e.Err }
func (e *RemoteAPIError) Code() string {
	switch e.StatusCode {
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	}
	return CodeUnexpected
}
func (e *RemoteAPIError) HTTPStatus() int {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return e.StatusCode
	}
	return http.StatusBadGateway
}

// Retryable is true for transport failures and upstream 5xx responses.
func (e *RemoteAPIError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}
func (e *RemoteAPIError) Details() map[string]any {
	return map[string]any{"service": e.Service, "operation": e.Op}
}

// CorrelationDecodeError reports a check-run external id that is not a valid correlation.
type CorrelationDecodeError struct {
	Raw string
	Err error
}

func (e *CorrelationDecodeError) Error() string {
	return fmt.Sprintf("invalid external id %q: %v", e.Raw, e.Err)
}
func (e *CorrelationDecodeError) Unwrap() error           { return e.Err }
func (e *CorrelationDecodeError) Code() string            { return CodeInvalidUsage }
func (e *CorrelationDecodeError) HTTPStatus() int         { return http.StatusBadRequest }
func (e *CorrelationDecodeError) Retryable() bool         { return false }
func (e *CorrelationDecodeError) Details() map[string]any { return nil }

// IsRetryable reports whether err is worth another attempt. Errors outside the
// taxonomy are retried only when they are network errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var coded CodedError
	if errors.As(err, &coded) {
		return coded.Retryable()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// HTTPStatusOf maps err to the status code returned to webhook callers.
func HTTPStatusOf(err error) int {
	var coded CodedError
	if errors.As(err, &coded) {
		return coded.HTTPStatus()
	}
	return http.StatusInternalServerError
}
