package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/forgeflow/forgeflow/graph/emit"
)

// Failable is the state constraint the retry supervisor needs: reading a
// status field by its key, and producing a state marked as failed after
// retries are exhausted. The type parameter lets WithFailure return the
// concrete state type so supervised steps keep value semantics.
type Failable[S any] interface {
	// StatusValue returns the value stored under the given status key,
	// or the empty string when the key was never set.
	StatusValue(key string) string

	// WithFailure returns a copy of the state with the status key set to
	// "failed" and the retry_status message recording the exhaustion.
	WithFailure(statusKey, retryMessage string) S
}

// Defaults applied by NewRetry when the corresponding RetryConfig field is
// left at its zero value.
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 2 * time.Second
	DefaultStatusKey   = "status"
	DefaultSuccess     = "success"
)

// RetryConfig parameterizes a Retry supervisor.
type RetryConfig struct {
	// MaxAttempts is the total number of invocations of the target,
	// including the first one. 1 makes the supervisor a pass-through.
	MaxAttempts int

	// Delay is the wait between attempts. There is no wait after the
	// final attempt. The wait is context-aware: cancelling the run wakes
	// the supervisor immediately.
	Delay time.Duration

	// StatusKey is the state field that encodes the target's outcome.
	StatusKey string

	// SuccessValue is the exact StatusKey value that counts as success.
	SuccessValue string

	// Emitter, when set, receives one event per attempt. Faults raised by
	// the target are recorded here since they are swallowed per attempt.
	Emitter emit.Emitter

	// Metrics, when set, counts retry attempts beyond the first.
	Metrics *Metrics
}

// Retry makes any Step resilient to transient failure without the step
// knowing it is being retried. It implements Step itself, so the engine
// cannot tell a supervised step from a plain one, and supervisors compose
// (a Retry can wrap another Retry).
//
// Per attempt, the target is invoked with the current state; a returned
// fault is captured and counted as a failed attempt rather than propagated
// (the pre-attempt state is kept). Success is detected by comparing the
// configured status key against the configured success value, so a target
// that never sets the key fails every attempt. When all attempts are
// exhausted, the status key is forced to "failed" and retry_status records
// the attempt count; the supervisor never raises for expected failure.
type Retry[S Failable[S]] struct {
	name   string
	target Step[S]
	cfg    RetryConfig
}

// NewRetry wraps target in a retry supervisor. The supervisor exclusively
// owns the target; callers must not register the target separately.
func NewRetry[S Failable[S]](name string, target Step[S], cfg RetryConfig) *Retry[S] {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	} else if cfg.Delay == 0 {
		cfg.Delay = DefaultRetryDelay
	}
	if cfg.StatusKey == "" {
		cfg.StatusKey = DefaultStatusKey
	}
	if cfg.SuccessValue == "" {
		cfg.SuccessValue = DefaultSuccess
	}
	return &Retry[S]{name: name, target: target, cfg: cfg}
}

// NewRetryNoDelay is NewRetry with a zero inter-attempt delay. Used in
// tests and wherever immediate re-attempts are wanted.
func NewRetryNoDelay[S Failable[S]](name string, target Step[S], cfg RetryConfig) *Retry[S] {
	cfg.Delay = -1
	r := NewRetry(name, target, cfg)
	return r
}

// Name returns the supervisor's own name, used in attempt events.
func (r *Retry[S]) Name() string {
	return r.name
}

// Invoke implements Step.
func (r *Retry[S]) Invoke(ctx context.Context, state S) (S, error) {
	current := state

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		next, err := r.target.Invoke(ctx, current)
		if err != nil {
			// Fault inside a supervised step is a failed attempt, not an
			// abort. The state from before the attempt is kept.
			r.emitAttempt(attempt, "fault", err.Error())
		} else {
			current = next
			if current.StatusValue(r.cfg.StatusKey) == r.cfg.SuccessValue {
				r.emitAttempt(attempt, "success", "")
				return current, nil
			}
			r.emitAttempt(attempt, "failed", current.StatusValue(r.cfg.StatusKey))
		}

		if attempt < r.cfg.MaxAttempts {
			if r.cfg.Metrics != nil {
				r.cfg.Metrics.retryScheduled(r.name)
			}
			if err := r.wait(ctx); err != nil {
				return current, err
			}
		}
	}

	msg := fmt.Sprintf("failed after %d attempts", r.cfg.MaxAttempts)
	return current.WithFailure(r.cfg.StatusKey, msg), nil
}

// wait sleeps for the configured delay, waking early on cancellation so a
// host running many workflows is never stuck behind an abandoned run.
func (r *Retry[S]) wait(ctx context.Context) error {
	if r.cfg.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(r.cfg.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Retry[S]) emitAttempt(attempt int, outcome, detail string) {
	if r.cfg.Emitter == nil {
		return
	}
	meta := map[string]any{
		"attempt":      attempt,
		"max_attempts": r.cfg.MaxAttempts,
		"outcome":      outcome,
	}
	if detail != "" {
		meta["detail"] = detail
	}
	r.cfg.Emitter.Emit(emit.Event{StepName: r.name, Msg: "retry_attempt", Meta: meta})
}
