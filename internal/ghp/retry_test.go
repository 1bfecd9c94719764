package ghp_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ghp-go/internal/ghp"
	"ghp-go/internal/testutil"
)

var testBackoff = ghp.Backoff{Retries: 3, Initial: 100 * time.Millisecond, Max: time.Second, Factor: 2}

func alwaysBackoff(error) (ghp.RetryClass, time.Duration) { return ghp.RetryBackoff, 0 }

func TestRetry_succeedsFirstAttempt(t *testing.T) {
	sleeper := testutil.NewStubSleeper()
	calls := 0

	err := ghp.Retry(context.Background(), sleeper, testBackoff, func() error {
		calls++
		return nil
	}, alwaysBackoff)

	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if calls != 1 || len(sleeper.Sleeps()) != 0 {
		t.Errorf("calls=%d sleeps=%d, want 1/0", calls, len(sleeper.Sleeps()))
	}
}

func TestRetry_backsOffThenSucceeds(t *testing.T) {
	sleeper := testutil.NewStubSleeper()
	calls := 0

	err := ghp.Retry(context.Background(), sleeper, testBackoff, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, alwaysBackoff)

	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	got := sleeper.Sleeps()
	if len(got) != len(want) {
		t.Fatalf("sleeps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRetry_exhaustsSchedule(t *testing.T) {
	sleeper := testutil.NewStubSleeper()
	calls := 0
	lastErr := errors.New("still broken")

	err := ghp.Retry(context.Background(), sleeper, testBackoff, func() error {
		calls++
		return lastErr
	}, alwaysBackoff)

	if !errors.Is(err, lastErr) {
		t.Fatalf("Retry() error = %v, want last attempt's error", err)
	}
	// One initial attempt plus Retries more.
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestRetry_stopClassIsImmediate(t *testing.T) {
	sleeper := testutil.NewStubSleeper()
	calls := 0
	fatal := errors.New("bad credentials")

	err := ghp.Retry(context.Background(), sleeper, testBackoff, func() error {
		calls++
		return fatal
	}, func(error) (ghp.RetryClass, time.Duration) { return ghp.RetryStop, 0 })

	if !errors.Is(err, fatal) {
		t.Fatalf("Retry() error = %v, want %v", err, fatal)
	}
	if calls != 1 || len(sleeper.Sleeps()) != 0 {
		t.Errorf("calls=%d sleeps=%d, want 1/0", calls, len(sleeper.Sleeps()))
	}
}

func TestRetry_hintOverridesDelay(t *testing.T) {
	sleeper := testutil.NewStubSleeper()
	calls := 0

	err := ghp.Retry(context.Background(), sleeper, testBackoff, func() error {
		calls++
		if calls == 1 {
			return errors.New("throttled")
		}
		return nil
	}, func(error) (ghp.RetryClass, time.Duration) { return ghp.RetryBackoff, 5 * time.Second })

	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	sleeps := sleeper.Sleeps()
	if len(sleeps) != 1 || sleeps[0] != 5*time.Second {
		t.Errorf("sleeps = %v, want [5s]", sleeps)
	}
}

func TestRetry_cancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sleeper := testutil.NewStubSleeper()

	err := ghp.Retry(ctx, sleeper, testBackoff, func() error {
		return errors.New("transient")
	}, alwaysBackoff)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Retry() error = %v, want context.Canceled", err)
	}
}

func TestBackoffDelay_capsAtMax(t *testing.T) {
	b := ghp.Backoff{Retries: 10, Initial: 400 * time.Millisecond, Max: time.Second, Factor: 2}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 400 * time.Millisecond},
		{2, 800 * time.Millisecond},
		{3, time.Second},
		{8, time.Second},
	}
	for _, tc := range cases {
		if got := b.Delay(tc.attempt); got != tc.want {
			t.Errorf("Delay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}
