// Package jobs runs the background tasks that mirror commits and report CI
// results back to GitHub.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sevigo/hub2lab/internal/config"
	"github.com/sevigo/hub2lab/internal/core"
)

var (
	// ErrQueueFull is returned by Submit when no queue slot is free.
	ErrQueueFull = errors.New("task queue is full")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("dispatcher is stopped")
)

// UnexpectedError wraps a panic raised by a task.
type UnexpectedError struct {
	Task  string
	Value any
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected error in %s: %v", e.Task, e.Value)
}
func (e *UnexpectedError) Code() string            { return core.CodeUnexpected }
func (e *UnexpectedError) HTTPStatus() int         { return http.StatusInternalServerError }
func (e *UnexpectedError) Retryable() bool         { return false }
func (e *UnexpectedError) Details() map[string]any { return nil }

// policyTask is implemented by tasks that bring their own retry policy.
type policyTask interface {
	RetryPolicy() RetryPolicy
}

// run is one submitted task together with its retry state. A run holds one
// unit of the dispatcher's pending count until it succeeds or gives up.
type run struct {
	task    core.Task
	policy  RetryPolicy
	backOff backoff.BackOff
	attempt int
}

// nextWait returns the delay before the next attempt, or backoff.Stop once
// the attempt ceiling is reached.
func (r *run) nextWait() time.Duration {
	if r.backOff == nil {
		r.backOff = r.policy.backOff(context.Background())
	}
	return r.backOff.NextBackOff()
}

// dispatcher implements core.TaskDispatcher with a pool of worker goroutines
// reading from a bounded queue. Retries wait on timers, not on workers.
type dispatcher struct {
	queue      chan *run
	maxWorkers int
	retry      RetryPolicy
	wg         sync.WaitGroup
	pending    sync.WaitGroup
	mu         sync.RWMutex
	stopped    bool
	timers     map[*run]*time.Timer
	logger     *slog.Logger
}

// NewDispatcher starts cfg.MaxWorkers workers. If MaxWorkers is 0 or negative
// it defaults to 1.
func NewDispatcher(cfg config.ServerConfig, retry RetryPolicy, logger *slog.Logger) core.TaskDispatcher {
	return newDispatcher(cfg, retry, logger)
}

func newDispatcher(cfg config.ServerConfig, retry RetryPolicy, logger *slog.Logger) *dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	d := &dispatcher{
		queue:      make(chan *run, queueSize),
		maxWorkers: maxWorkers,
		retry:      retry,
		timers:     make(map[*run]*time.Timer),
		logger:     logger,
	}
	d.startWorkers()
	return d
}

func (d *dispatcher) startWorkers() {
	for i := range d.maxWorkers {
		d.wg.Add(1)
		go d.startWorker(i)
	}
}

func (d *dispatcher) startWorker(workerID int) {
	defer d.wg.Done()
	d.logger.Info("starting task worker", "id", workerID)

	for r := range d.queue {
		d.process(workerID, r)
	}

	d.logger.Info("shutting down task worker", "id", workerID)
}

func (d *dispatcher) newRun(task core.Task) *run {
	policy := d.retry
	if p, ok := task.(policyTask); ok {
		policy = p.RetryPolicy()
	}
	return &run{task: task, policy: policy}
}

// Submit queues a task. It never blocks.
func (d *dispatcher) Submit(_ context.Context, task core.Task) error {
	if err := d.enqueue(d.newRun(task)); err != nil {
		d.logger.Warn("task rejected", "task", task.Name(), "key", task.Key(), "error", err)
		return err
	}
	d.logger.Info("task queued", "task", task.Name(), "key", task.Key())
	return nil
}

// enqueue admits a new run to the queue.
func (d *dispatcher) enqueue(r *run) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}
	d.pending.Add(1)
	select {
	case d.queue <- r:
		return nil
	default:
		d.pending.Done()
		return ErrQueueFull
	}
}

// process runs one attempt of r. A retryable failure schedules the next
// attempt; continuations go back to the queue, or run on this worker when the
// queue cannot take them.
func (d *dispatcher) process(workerID int, r *run) {
	ctx := context.Background()
	logger := d.logger.With("worker_id", workerID, "task", r.task.Name(), "key", r.task.Key())

	next, err := runOnce(ctx, r.task, logger)
	r.attempt++
	if err != nil {
		if retryable(err) {
			if wait := r.nextWait(); wait != backoff.Stop {
				logger.Warn("task attempt failed, retrying", "error", err, "attempt", r.attempt, "wait", wait)
				d.schedule(r, wait, logger)
				return
			}
		}
		logger.Error("task failed", "error", err, "retryable", retryable(err), "attempts", r.attempt)
		d.fail(workerID, r.task, err, logger)
		d.pending.Done()
		return
	}
	logger.Info("task finished", "continuations", len(next), "attempts", r.attempt)

	for _, cont := range next {
		d.submitOrRun(workerID, cont)
	}
	d.pending.Done()
}

func (d *dispatcher) submitOrRun(workerID int, task core.Task) {
	r := d.newRun(task)
	if err := d.enqueue(r); err != nil {
		d.pending.Add(1)
		d.process(workerID, r)
	}
}

// schedule re-queues r after wait. After Stop the retry is dropped.
func (d *dispatcher) schedule(r *run, wait time.Duration, logger *slog.Logger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		logger.Warn("dispatcher stopped, dropping retry", "attempt", r.attempt)
		d.pending.Done()
		return
	}
	d.timers[r] = time.AfterFunc(wait, func() { d.due(r) })
}

// due hands a run whose wait elapsed back to the workers. When the queue is
// full the attempt runs on the timer goroutine.
func (d *dispatcher) due(r *run) {
	d.mu.Lock()
	if _, ok := d.timers[r]; !ok {
		d.mu.Unlock()
		return
	}
	delete(d.timers, r)
	select {
	case d.queue <- r:
		d.mu.Unlock()
		return
	default:
	}
	d.wg.Add(1)
	d.mu.Unlock()

	defer d.wg.Done()
	d.process(-1, r)
}

// runOnce executes task and converts a panic into an UnexpectedError.
func runOnce(ctx context.Context, task core.Task, logger *slog.Logger) (next []core.Task, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("task panicked", "panic", r, "stack", string(debug.Stack()))
			next, err = nil, &UnexpectedError{Task: task.Name(), Value: r}
		}
	}()
	return task.Execute(ctx)
}

// fail schedules the failure task of a task that gave up. The failure task is
// retried like any other task.
func (d *dispatcher) fail(workerID int, task core.Task, cause error, logger *slog.Logger) {
	handler, ok := task.(core.FailureHandler)
	if !ok {
		return
	}
	failure := handler.OnFailure(cause)
	if failure == nil {
		return
	}
	logger.Info("reporting task failure", "failure_task", failure.Name())
	d.submitOrRun(workerID, failure)
}

// Wait blocks until nothing is queued, running or waiting for a retry.
func (d *dispatcher) Wait() {
	d.pending.Wait()
}

// Stop stops accepting tasks, drops scheduled retries and waits for queued
// tasks to finish.
func (d *dispatcher) Stop() {
	d.logger.Info("stopping dispatcher and waiting for tasks to finish")
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	dropped := make([]*run, 0, len(d.timers))
	for r, timer := range d.timers {
		timer.Stop()
		dropped = append(dropped, r)
	}
	clear(d.timers)
	close(d.queue)
	d.mu.Unlock()

	for _, r := range dropped {
		d.logger.Warn("dropping scheduled retry", "task", r.task.Name(), "key", r.task.Key(), "attempt", r.attempt)
		d.pending.Done()
	}
	d.wg.Wait()
	d.logger.Info("all tasks have finished")
}
