package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/imageforge/backend/internal/provider"
)

// scriptedTask builds a PendingTask whose poll function replays the given
// outcomes in order, repeating the last one when drained.
type pollOutcome struct {
	status *provider.PollStatus
	err    error
}

func scriptedTask(outcomes ...pollOutcome) *provider.PendingTask {
	var mu sync.Mutex
	i := 0
	return &provider.PendingTask{
		TaskID:      "task-1",
		Provider:    "mock",
		SubmittedAt: time.Now(),
		Poll: func(context.Context, string) (*provider.PollStatus, error) {
			mu.Lock()
			defer mu.Unlock()
			out := outcomes[i]
			if i < len(outcomes)-1 {
				i++
			}
			return out.status, out.err
		},
	}
}

func fastPoller(maxAttempts int) *Poller {
	return New(Config{Interval: time.Millisecond, MaxAttempts: maxAttempts}, nil)
}

func pending() pollOutcome {
	return pollOutcome{status: &provider.PollStatus{State: provider.PollPending}}
}

func TestAwaitCompletes(t *testing.T) {
	result := &provider.Result{URL: "https://delivery.example/a.png"}
	task := scriptedTask(
		pending(),
		pending(),
		pollOutcome{status: &provider.PollStatus{State: provider.PollCompleted, Result: result}},
	)

	got, err := fastPoller(10).Await(context.Background(), task)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if got != result {
		t.Error("Await should return the poll result")
	}
}

func TestAwaitProviderFailureStopsImmediately(t *testing.T) {
	task := scriptedTask(
		pending(),
		pollOutcome{status: &provider.PollStatus{State: provider.PollFailed, Reason: "nsfw filter"}},
	)

	_, err := fastPoller(10).Await(context.Background(), task)
	if !errors.Is(err, ErrTaskFailed) {
		t.Fatalf("expected ErrTaskFailed, got: %v", err)
	}
}

func TestAwaitTransientPollErrorRetries(t *testing.T) {
	result := &provider.Result{Bytes: []byte("img")}
	task := scriptedTask(
		pollOutcome{err: provider.Transient(503, errors.New("blip"))},
		pollOutcome{err: provider.Transient(0, errors.New("timeout"))},
		pollOutcome{status: &provider.PollStatus{State: provider.PollCompleted, Result: result}},
	)

	got, err := fastPoller(10).Await(context.Background(), task)
	if err != nil {
		t.Fatalf("transient poll errors should be retried: %v", err)
	}
	if got != result {
		t.Error("Await should return the poll result")
	}
}

func TestAwaitPermanentPollErrorStops(t *testing.T) {
	permErr := provider.Permanent(404, errors.New("task not found"))
	task := scriptedTask(pollOutcome{err: permErr})

	_, err := fastPoller(10).Await(context.Background(), task)
	if !errors.Is(err, permErr) {
		t.Fatalf("expected the permanent error, got: %v", err)
	}
}

func TestAwaitTimesOutAfterBudget(t *testing.T) {
	task := scriptedTask(pending())

	start := time.Now()
	_, err := fastPoller(5).Await(context.Background(), task)
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got: %v", err)
	}
	// Budget is bounded: 5 attempts at 1ms must not take seconds.
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %v, polling is not bounded", elapsed)
	}
}

func TestAwaitHonorsContextCancellation(t *testing.T) {
	task := scriptedTask(pending())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Config{Interval: time.Minute, MaxAttempts: 10}, nil).Await(ctx, task)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
}

func TestAwaitConcurrentTasksIndependent(t *testing.T) {
	// A stuck task must not delay a fast one.
	stuck := scriptedTask(pending())
	fast := scriptedTask(pollOutcome{status: &provider.PollStatus{
		State:  provider.PollCompleted,
		Result: &provider.Result{URL: "https://delivery.example/fast.png"},
	}})

	p := New(Config{Interval: 50 * time.Millisecond, MaxAttempts: 100}, nil)

	done := make(chan struct{})
	go func() {
		_, _ = p.Await(context.Background(), stuck)
	}()
	go func() {
		if _, err := p.Await(context.Background(), fast); err != nil {
			t.Errorf("fast task: %v", err)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fast task was delayed by the stuck task")
	}
}
