package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opst/gdsremote/pkg/utils/retry"
)

func TestIncrementing(t *testing.T) {
	type when struct {
		start, increment, max time.Duration
	}
	theory := func(when when, then []time.Duration) func(*testing.T) {
		return func(t *testing.T) {
			s := retry.Incrementing(when.start, when.increment, when.max)
			for n, expected := range then {
				if actual := s(n + 1); actual != expected {
					t.Errorf("interval #%d: (actual, expected) = (%s, %s)", n+1, actual, expected)
				}
			}
		}
	}

	t.Run("it increments until max", theory(
		when{start: 200 * time.Millisecond, increment: 200 * time.Millisecond, max: 2 * time.Second},
		[]time.Duration{
			200 * time.Millisecond, 400 * time.Millisecond, 600 * time.Millisecond,
			800 * time.Millisecond, 1 * time.Second, 1200 * time.Millisecond,
			1400 * time.Millisecond, 1600 * time.Millisecond, 1800 * time.Millisecond,
			2 * time.Second, 2 * time.Second, 2 * time.Second,
		},
	))

	t.Run("it has no cap when max is zero", theory(
		when{start: time.Second, increment: time.Second},
		[]time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second},
	))
}

func TestUntil(t *testing.T) {
	t.Run("it calls function at once and retries after backoff", func(t *testing.T) {
		calls := 0
		backoffs := 0
		b := func(context.Context) error {
			backoffs += 1
			return nil
		}
		got, err := retry.Until(context.Background(), b, func() (int, error) {
			calls += 1
			if calls < 3 {
				return calls, retry.ErrRetry
			}
			return calls, nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if got != 3 || calls != 3 || backoffs != 2 {
			t.Errorf("(got, calls, backoffs) = (%d, %d, %d), expected (3, 3, 2)", got, calls, backoffs)
		}
	})

	t.Run("it stops with non-retry error", func(t *testing.T) {
		expected := errors.New("fatal")
		calls := 0
		_, err := retry.Until(
			context.Background(), retry.Incrementing(0, 0, 0).Backoff(),
			func() (int, error) {
				calls += 1
				return 0, expected
			},
		)
		if !errors.Is(err, expected) {
			t.Errorf("unexpected error: %v", err)
		}
		if calls != 1 {
			t.Errorf("function is called %d times", calls)
		}
	})

	t.Run("it stops when context is cancelled during backoff", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := retry.Until(ctx, retry.Incrementing(time.Hour, 0, 0).Backoff(), func() (int, error) {
			return 0, retry.ErrRetry
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestSleep(t *testing.T) {
	before := time.Now()
	if err := retry.Sleep(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(before); elapsed < 20*time.Millisecond {
		t.Errorf("slept too short: %s", elapsed)
	}
}
