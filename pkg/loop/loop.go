// Package loop runs a task repeatedly, sleeping between rounds, until the task breaks
// or the context is done.
//
// It is the polling primitive of gdsremote: job status polling is a loop.Task.
package loop

import (
	"context"
	"fmt"
	"time"
)

// Next tells Start what to do after a round.
type Next struct {
	// if not nil, breaks with error
	err error

	// if quit == true and err == nil, breaks without error
	quit bool

	// otherwise, continue loop with interval.
	interval time.Duration
}

func (n Next) String() string {
	if n.err != nil {
		return fmt.Sprintf("[break] with error: %v", n.err)
	}
	if n.quit {
		return "[break] without error"
	}

	return fmt.Sprintf("[continue] interval: %s", n.interval)
}

// Continue the loop after sleeping for interval.
func Continue(interval time.Duration) Next {
	return Next{interval: interval}
}

// Break the loop. Pass nil to break without error.
func Break(err error) Next {
	return Next{quit: true, err: err}
}

// Task is one round of a loop.
//
// It receives the value returned by the previous round (or the initial value)
// and returns the value for the next round with Continue or Break.
// Zero value of Next equals Continue(0).
type Task[T any] func(context.Context, T) (T, Next)

// Start runs task in loop.
//
// # Args
//
// - ctx: When this context gets done, the loop breaks with ctx.Err().
//
// - init: task is called as task(ctx, init) at the first round.
//
// - task: Task to be repeated.
//
// - options: LoopOption
//
// # Returns
//
// - T: the last value task returned. It is returned even if error is not nil.
//
// - error: error in Break(error), or ctx.Err(). nil when the loop breaks with Break(nil).
func Start[T any](ctx context.Context, init T, task Task[T], options ...LoopOption) (T, error) {
	lc := &loopConfig{}
	for _, opt := range options {
		lc = opt(lc)
	}

	select {
	case <-ctx.Done():
		return init, ctx.Err()
	default:
	}

	if 0 < lc.initialDelay {
		if err := sleep(ctx, lc.initialDelay); err != nil {
			return init, err
		}
	}

	value := init
	for {
		v, n := round(ctx, lc, task, value)
		value = v

		if n.err != nil {
			return value, n.err
		} else if n.quit {
			return value, nil
		}

		if err := sleep(ctx, n.interval); err != nil {
			return value, err
		}
	}
}

func round[T any](ctx context.Context, lc *loopConfig, task Task[T], value T) (T, Next) {
	if lc.timeout <= 0 {
		return task(ctx, value)
	}
	ctx, cancel := context.WithTimeout(ctx, lc.timeout)
	defer cancel()
	return task(ctx, value)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		// shutting down is priority. it should come first, and checking timer later.
		if !timer.Stop() {
			<-timer.C // drain. see: time.Timer.Stop's document
		}
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type loopConfig struct {
	timeout      time.Duration
	initialDelay time.Duration
}

type LoopOption func(*loopConfig) *loopConfig

// WithTimeout sets timeout per round.
//
// The timeout is set on the context passed to the task.
func WithTimeout(d time.Duration) LoopOption {
	return func(lc *loopConfig) *loopConfig {
		lc.timeout = d
		return lc
	}
}

// WithInitialDelay sleeps d before the first round.
func WithInitialDelay(d time.Duration) LoopOption {
	return func(lc *loopConfig) *loopConfig {
		lc.initialDelay = d
		return lc
	}
}
