package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/hub2lab/internal/config"
	"github.com/sevigo/hub2lab/internal/core"
)

var fastPolicy = RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

type funcTask struct {
	name     string
	attempts atomic.Int32
	fn       func(attempt int) ([]core.Task, error)
}

func (t *funcTask) Name() string { return t.name }
func (t *funcTask) Key() string  { return "test:" + t.name }
func (t *funcTask) Execute(context.Context) ([]core.Task, error) {
	return t.fn(int(t.attempts.Add(1)))
}

// failingTask records the cause handed to OnFailure and runs the failure task.
type failingTask struct {
	funcTask
	mu      sync.Mutex
	cause   error
	handled *funcTask
}

func (t *failingTask) OnFailure(err error) core.Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cause = err
	t.handled = &funcTask{name: "failure", fn: func(int) ([]core.Task, error) { return nil, nil }}
	return t.handled
}

func (t *failingTask) failure() (*funcTask, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handled, t.cause
}

func newTestDispatcher(workers, queue int) *dispatcher {
	return newDispatcher(config.ServerConfig{MaxWorkers: workers, QueueSize: queue}, fastPolicy, nil)
}

func TestDispatcher_RunsContinuations(t *testing.T) {
	d := newTestDispatcher(2, 10)
	second := &funcTask{name: "second", fn: func(int) ([]core.Task, error) { return nil, nil }}
	first := &funcTask{name: "first", fn: func(int) ([]core.Task, error) { return []core.Task{second}, nil }}

	require.NoError(t, d.Submit(context.Background(), first))
	d.Wait()
	d.Stop()

	assert.Equal(t, int32(1), first.attempts.Load())
	assert.Equal(t, int32(1), second.attempts.Load())
}

func TestDispatcher_RetryableErrors(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantAttempts int32
		wantFailure  bool
	}{
		{"recovers after transient errors", nil, 3, false},
		{"server errors exhaust the ceiling", core.NewRemoteAPIError("gitlab", "create pipeline", 502, errors.New("bad gateway")), 3, true},
		{"network errors exhaust the ceiling", core.NewRemoteAPIError("git", "clone", 0, errors.New("reset")), 3, true},
		{"client errors are fatal", core.NewRemoteAPIError("gitlab", "create pipeline", 400, errors.New("bad request")), 1, true},
		{"descriptor errors are fatal", &core.DescriptorNotFound{Candidates: []string{".gitlab-ci.yml"}}, 1, true},
		{"integrity errors are fatal", &core.IntegrityError{ExpectedSHA: "a", ActualSHA: "b"}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDispatcher(1, 10)
			task := &failingTask{funcTask: funcTask{name: "flaky", fn: func(attempt int) ([]core.Task, error) {
				if tt.err == nil {
					if attempt < 3 {
						return nil, core.NewRemoteAPIError("github", "create status", 503, errors.New("unavailable"))
					}
					return nil, nil
				}
				return nil, tt.err
			}}}

			require.NoError(t, d.Submit(context.Background(), task))
			d.Wait()
			d.Stop()

			assert.Equal(t, tt.wantAttempts, task.attempts.Load())
			handled, cause := task.failure()
			if !tt.wantFailure {
				assert.Nil(t, handled)
				return
			}
			require.NotNil(t, handled)
			assert.Equal(t, int32(1), handled.attempts.Load())
			assert.ErrorIs(t, cause, tt.err)
		})
	}
}

func TestDispatcher_PanicBecomesUnexpectedError(t *testing.T) {
	d := newTestDispatcher(1, 10)
	task := &failingTask{funcTask: funcTask{name: "explodes", fn: func(int) ([]core.Task, error) {
		panic("boom")
	}}}

	require.NoError(t, d.Submit(context.Background(), task))
	d.Stop()

	handled, cause := task.failure()
	require.NotNil(t, handled)
	var unexpected *UnexpectedError
	require.ErrorAs(t, cause, &unexpected)
	assert.Equal(t, "explodes", unexpected.Task)
	assert.Equal(t, core.CodeUnexpected, unexpected.Code())
	assert.Equal(t, int32(1), task.attempts.Load())
}

func TestDispatcher_QueueFull(t *testing.T) {
	d := newTestDispatcher(1, 1)
	started := make(chan struct{})
	release := make(chan struct{})
	blocker := &funcTask{name: "blocker", fn: func(int) ([]core.Task, error) {
		close(started)
		<-release
		return nil, nil
	}}
	noop := func(int) ([]core.Task, error) { return nil, nil }

	require.NoError(t, d.Submit(context.Background(), blocker))
	<-started
	require.NoError(t, d.Submit(context.Background(), &funcTask{name: "queued", fn: noop}))
	err := d.Submit(context.Background(), &funcTask{name: "rejected", fn: noop})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	d.Stop()
}

func TestDispatcher_SubmitAfterStop(t *testing.T) {
	d := newTestDispatcher(1, 1)
	d.Stop()
	d.Stop()

	err := d.Submit(context.Background(), &funcTask{name: "late", fn: func(int) ([]core.Task, error) { return nil, nil }})
	assert.ErrorIs(t, err, ErrStopped)
}

type pollingTask struct {
	funcTask
	policy RetryPolicy
}

func (t *pollingTask) RetryPolicy() RetryPolicy { return t.policy }

func TestDispatcher_TaskPolicyOverridesDefault(t *testing.T) {
	d := newTestDispatcher(1, 1)
	task := &pollingTask{
		funcTask: funcTask{name: "poll", fn: func(attempt int) ([]core.Task, error) {
			if attempt < 5 {
				return nil, ErrStillPending
			}
			return nil, nil
		}},
		policy: RetryPolicy{MaxAttempts: 6, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
	}

	require.NoError(t, d.Submit(context.Background(), task))
	d.Wait()
	d.Stop()
	assert.Equal(t, int32(5), task.attempts.Load())
}

func TestDispatcher_PendingRetriesDoNotHoldWorkers(t *testing.T) {
	d := newTestDispatcher(2, 10)
	slow := RetryPolicy{MaxAttempts: 20, InitialInterval: time.Minute, MaxInterval: time.Minute}
	var polls []*pollingTask
	for range 2 {
		poll := &pollingTask{
			funcTask: funcTask{name: "poll", fn: func(int) ([]core.Task, error) { return nil, ErrStillPending }},
			policy:   slow,
		}
		polls = append(polls, poll)
		require.NoError(t, d.Submit(context.Background(), poll))
	}
	require.Eventually(t, func() bool {
		return polls[0].attempts.Load() == 1 && polls[1].attempts.Load() == 1
	}, time.Second, time.Millisecond)

	done := make(chan struct{})
	update := &funcTask{name: "status-update", fn: func(int) ([]core.Task, error) {
		close(done)
		return nil, nil
	}}
	require.NoError(t, d.Submit(context.Background(), update))

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("status update waited behind pending polls")
	}

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stop waited for scheduled retries")
	}
	d.Wait()
	for _, poll := range polls {
		assert.Equal(t, int32(1), poll.attempts.Load())
	}
}

func TestDispatcher_FailureTaskOfDroppedRetryNotRun(t *testing.T) {
	d := newTestDispatcher(1, 10)
	task := &failingTask{funcTask: funcTask{name: "flaky", fn: func(int) ([]core.Task, error) {
		return nil, core.NewRemoteAPIError("gitlab", "get pipeline", 503, errors.New("unavailable"))
	}}}
	d.retry = RetryPolicy{MaxAttempts: 3, InitialInterval: time.Minute, MaxInterval: time.Minute}

	require.NoError(t, d.Submit(context.Background(), task))
	require.Eventually(t, func() bool { return task.attempts.Load() == 1 }, time.Second, time.Millisecond)
	d.Stop()
	d.Wait()

	handled, _ := task.failure()
	assert.Nil(t, handled)
}

func TestPolicyFromConfig(t *testing.T) {
	assert.Equal(t, DefaultRetryPolicy, PolicyFromConfig(config.RetryConfig{}))

	p := PolicyFromConfig(config.RetryConfig{MaxAttempts: 2, InitialInterval: time.Minute, MaxInterval: time.Second})
	assert.Equal(t, RetryPolicy{MaxAttempts: 2, InitialInterval: time.Minute, MaxInterval: time.Minute}, p)
}

func TestPollPolicyFromConfig_SharesRetryCeiling(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.TasksConfig
		want RetryPolicy
	}{
		{
			name: "configured",
			cfg: config.TasksConfig{
				Retry: config.RetryConfig{MaxAttempts: 7, InitialInterval: time.Second, MaxInterval: time.Minute},
				Poll:  config.PollConfig{InitialInterval: 30 * time.Second, MaxInterval: 5 * time.Minute},
			},
			want: RetryPolicy{MaxAttempts: 7, InitialInterval: 30 * time.Second, MaxInterval: 5 * time.Minute},
		},
		{
			name: "unset falls back to the default ceiling",
			cfg:  config.TasksConfig{},
			want: DefaultRetryPolicy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poll := PollPolicyFromConfig(tt.cfg)
			assert.Equal(t, tt.want, poll)
			assert.Equal(t, PolicyFromConfig(tt.cfg.Retry).MaxAttempts, poll.MaxAttempts)
		})
	}
}

func TestRetryPolicy_BackOffCeiling(t *testing.T) {
	tests := []struct {
		name      string
		policy    RetryPolicy
		wantWaits int
	}{
		{"single attempt", RetryPolicy{MaxAttempts: 1, InitialInterval: time.Second, MaxInterval: time.Second}, 0},
		{"five attempts", RetryPolicy{MaxAttempts: 5, InitialInterval: time.Second, MaxInterval: time.Minute}, 4},
		{"unset ceiling runs once", RetryPolicy{InitialInterval: time.Second, MaxInterval: time.Second}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.policy.backOff(context.Background())
			var waits int
			for b.NextBackOff() != backoff.Stop {
				waits++
				require.LessOrEqual(t, waits, 100)
			}
			assert.Equal(t, tt.wantWaits, waits)
		})
	}
}
