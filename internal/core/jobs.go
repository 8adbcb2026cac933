package core

import (
	"context"
)

// Task is a single unit of background work. Tasks are executed at least once,
// so Execute must be safe to repeat with the same inputs.
type Task interface {
	// Name is the task type, e.g. "sync" or "status-update".
	Name() string
	// Key identifies the task by its inputs. Two deliveries of the same
	// webhook produce tasks with the same key.
	Key() string
	// Execute runs the task. On success it returns the continuations to
	// schedule next. Errors are classified with IsRetryable.
	Execute(ctx context.Context) ([]Task, error)
}

// FailureHandler is implemented by tasks that must leave a visible trace when
// they fail for good. The returned task is scheduled in place of the failed one.
type FailureHandler interface {
	OnFailure(err error) Task
}

// TaskDispatcher accepts tasks for asynchronous processing. Submit returns an
// error when the task cannot be queued, which gives the webhook handler a way
// to apply backpressure.
type TaskDispatcher interface {
	Submit(ctx context.Context, task Task) error
	// Wait blocks until every submitted task, its retries and its
	// continuations have finished.
	Wait()
	// Stop stops accepting tasks, drops retries that are not yet due and
	// waits for running tasks.
	Stop()
}
