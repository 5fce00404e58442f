// Package retry wraps fallible operations with bounded exponential backoff.
// Only an explicit allow-list of transient error kinds is retried; anything
// else propagates on first occurrence so that definitive failures (a bad
// checksum, a missing backend) are never masked by pointless repeats.
package retry

import (
	"context"
	"time"

	"github.com/ebarretto/sideload/internal/config"
	"github.com/ebarretto/sideload/internal/core"
)

// Policy describes one bounded backoff loop. The zero value performs a
// single attempt with no retries.
type Policy struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	BackoffFactor  float64
	MaxDelay       time.Duration
	RetryableKinds []core.ErrorKind

	// OnRetry is called before each backoff sleep with the attempt number
	// that just failed, its error, and the upcoming delay.
	OnRetry func(attempt int, err error, delay time.Duration)

	// OnFinalFailure is called once when every attempt has been used up.
	// It does not fire for non-retryable errors, which short-circuit.
	OnFinalFailure func(err error)
}

// DefaultRetryableKinds is the allow-list of transient error kinds.
// Everything else is treated as definitive.
func DefaultRetryableKinds() []core.ErrorKind {
	return []core.ErrorKind{
		core.KindNetworkTimeout,
		core.KindDownloadFailed,
		core.KindInstallationTimeout,
	}
}

// FromProfile builds a Policy from a configured retry profile, using the
// default allow-list.
func FromProfile(p config.RetryProfile) Policy {
	return Policy{
		MaxAttempts:    p.MaxAttempts,
		InitialDelay:   p.InitialDelay(),
		BackoffFactor:  p.BackoffFactor,
		MaxDelay:       p.MaxDelay(),
		RetryableKinds: DefaultRetryableKinds(),
	}
}

// Execute runs op until it succeeds, fails with a non-retryable kind, or
// exhausts MaxAttempts. The backoff sleep is context-aware: cancelling the
// context during a delay aborts the loop with ctx.Err().
func (p Policy) Execute(ctx context.Context, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !p.retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = p.nextDelay(delay)
	}

	if p.OnFinalFailure != nil {
		p.OnFinalFailure(lastErr)
	}
	return lastErr
}

// Result runs op under the policy and returns its value alongside the final
// error. The value from the last attempt is returned even on failure.
func Result[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := p.Execute(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

func (p Policy) retryable(err error) bool {
	kind := core.KindOf(err)
	for _, k := range p.RetryableKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// nextDelay grows the delay by the backoff factor, clamped to MaxDelay
func (p Policy) nextDelay(current time.Duration) time.Duration {
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	next := time.Duration(float64(current) * factor)
	if p.MaxDelay > 0 && next > p.MaxDelay {
		next = p.MaxDelay
	}
	return next
}
