package testutil

import (
	"context"
	"sync"
	"time"
)

// StubSleeper records requested delays without actually sleeping. Safe for
// concurrent use.
type StubSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func NewStubSleeper() *StubSleeper {
	return &StubSleeper{}
}

func (s *StubSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
	return nil
}

// Sleeps returns the recorded delays in request order.
func (s *StubSleeper) Sleeps() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.sleeps))
	copy(out, s.sleeps)
	return out
}
