package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/imageforge/backend/internal/provider"
)

// ErrTimedOut is returned when a task does not reach a terminal state
// within the attempt budget. The generation may still complete out-of-band
// on the provider side; callers report it distinctly from a rejection.
var ErrTimedOut = errors.New("generation timed out")

// ErrTaskFailed wraps a provider-reported terminal failure.
var ErrTaskFailed = errors.New("generation failed")

// Config bounds the polling loop. Interval and attempt budget are policy,
// injected at construction rather than hardcoded per provider.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

func DefaultConfig() Config {
	return Config{Interval: 2 * time.Second, MaxAttempts: 60}
}

// Poller drives async provider tasks to a terminal state. Each Await call
// runs independently in its caller's goroutine and holds no shared state,
// so a stuck task never delays another request.
type Poller struct {
	cfg Config
	log *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if log == nil {
		log = slog.Default()
	}
	return &Poller{cfg: cfg, log: log}
}

// Await polls the task until it completes, fails, or the attempt budget is
// exhausted. A transient failure of the poll call itself burns an attempt
// and continues; a permanent error or provider-reported failure stops
// immediately.
func (p *Poller) Await(ctx context.Context, task *provider.PendingTask) (*provider.Result, error) {
	timer := time.NewTimer(p.cfg.Interval)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		status, err := task.Poll(ctx, task.TaskID)
		if err != nil {
			if !provider.IsTransient(err) {
				return nil, err
			}
			p.log.Warn("poll attempt failed, retrying",
				"provider", task.Provider, "task_id", task.TaskID, "attempt", attempt, "error", err)
		} else {
			switch status.State {
			case provider.PollCompleted:
				return status.Result, nil
			case provider.PollFailed:
				return nil, fmt.Errorf("%w: %s", ErrTaskFailed, status.Reason)
			case provider.PollPending:
				// keep waiting
			default:
				return nil, fmt.Errorf("%w: unknown poll state %q", ErrTaskFailed, status.State)
			}
		}

		if attempt == p.cfg.MaxAttempts {
			break
		}
		timer.Reset(p.cfg.Interval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	p.log.Warn("poll budget exhausted",
		"provider", task.Provider, "task_id", task.TaskID, "attempts", p.cfg.MaxAttempts)
	return nil, ErrTimedOut
}
