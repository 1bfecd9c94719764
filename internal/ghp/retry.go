package ghp

import (
	"context"
	"time"
)

// Backoff describes a bounded exponential retry schedule.
type Backoff struct {
	// Retries is the number of attempts beyond the first.
	Retries int
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

// DefaultBackoff matches the pipeline defaults: 4 retries starting at
// 500ms, doubling, capped at 30s.
func DefaultBackoff() Backoff {
	return Backoff{Retries: 4, Initial: 500 * time.Millisecond, Max: 30 * time.Second, Factor: 2}
}

// Delay returns the delay before the given retry attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Initial
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * b.Factor)
		if d >= b.Max {
			return b.Max
		}
	}
	if d > b.Max {
		return b.Max
	}
	return d
}

// RetryClass tells Retry how to treat an error from one attempt.
type RetryClass int

const (
	// RetryStop propagates the error immediately.
	RetryStop RetryClass = iota
	// RetryBackoff retries after the schedule's next delay.
	RetryBackoff
)

// Retry runs fn until it succeeds, classify stops it, or the schedule is
// exhausted. classify may return a positive hint (e.g. a server-provided
// Retry-After) that overrides the computed delay. The last error is
// returned when attempts run out.
func Retry(ctx context.Context, sleeper Sleeper, b Backoff, fn func() error, classify func(error) (RetryClass, time.Duration)) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}

		class, hint := classify(err)
		if class == RetryStop || attempt >= b.Retries {
			return err
		}

		delay := b.Delay(attempt + 1)
		if hint > 0 {
			delay = hint
		}
		if sleepErr := sleeper.Sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
}
