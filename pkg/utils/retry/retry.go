package retry

import (
	"context"
	"errors"
	"time"
)

// ErrRetry is returned from a retried function to request one more attempt.
var ErrRetry = errors.New("retry")

// Backoff is a (blocking) function which returns when the next attempt may start.
//
// # Args
//
// - context: If the context is done, Backoff should return ctx.Err().
//
// # Returns
//
// - error: nil to go on, non-nil to give up.
type Backoff func(context.Context) error

// Schedule yields intervals between attempts. The n-th call (starting at 1) returns
// the wait before the (n+1)-th attempt.
type Schedule func(n int) time.Duration

// Incrementing waits for `start + increment*(n-1)`, capped at max.
//
// max <= 0 means "no cap".
func Incrementing(start, increment, max time.Duration) Schedule {
	return func(n int) time.Duration {
		d := start + increment*time.Duration(n-1)
		if 0 < max && max < d {
			return max
		}
		if d < 0 {
			return 0
		}
		return d
	}
}

// Backoff makes a Backoff which waits as the Schedule says.
//
// The returned Backoff is stateful: create one per retried operation.
func (s Schedule) Backoff() Backoff {
	n := 0
	return func(ctx context.Context) error {
		n += 1
		return Sleep(ctx, s(n))
	}
}

// Sleep waits for d, or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Until calls f at once, and again after each backoff while f returns ErrRetry.
//
func Until[T any](ctx context.Context, b Backoff, f func() (T, error)) (T, error) {
	for {
		last, err := f()
		if err == nil {
			return last, nil
		}
		if !errors.Is(err, ErrRetry) {
			return last, err
		}
		if err := b(ctx); err != nil {
			return last, err
		}
	}
}
