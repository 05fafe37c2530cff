// Package race waits for the first of several events and cancels the rest.
package race

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by a Receive waiter whose channel was closed.
var ErrClosed = errors.New("race: channel closed")

// Waiter blocks until its event happens or ctx is done.
type Waiter func(ctx context.Context) error

// First runs the waiters concurrently and returns the index and error of
// the first one to return. The others are cancelled, and First does not
// return until every one of them has exited, so no timer or goroutine
// outlives the call.
func First(ctx context.Context, waiters ...Waiter) (int, error) {
	if len(waiters) == 0 {
		return -1, errors.New("race: no waiters")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		idx int
		err error
	}
	results := make(chan result, len(waiters))
	for i, w := range waiters {
		go func() {
			results <- result{idx: i, err: w(ctx)}
		}()
	}

	winner := <-results
	cancel()
	for range len(waiters) - 1 {
		<-results
	}
	return winner.idx, winner.err
}

// Sleep completes after d.
func Sleep(d time.Duration) Waiter {
	return func(ctx context.Context) error {
		if d <= 0 {
			return nil
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Slot holds a value received by a Receive waiter.
type Slot[T any] struct {
	v  T
	ok bool
}

// Get returns the received value, if any. It must only be called after
// First has returned.
func (s *Slot[T]) Get() (T, bool) { return s.v, s.ok }

// Receive completes when a value arrives on ch and stores it in slot.
// A value taken by a losing Receive is still stored, so callers should
// consult the slot rather than the winning index to avoid dropping it.
func Receive[T any](ch <-chan T, slot *Slot[T]) Waiter {
	return func(ctx context.Context) error {
		select {
		case v, ok := <-ch:
			if !ok {
				return ErrClosed
			}
			slot.v, slot.ok = v, true
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Done completes when ch is closed or yields, returning the received error.
func Done(ch <-chan error) Waiter {
	return func(ctx context.Context) error {
		select {
		case err, ok := <-ch:
			if !ok {
				return ErrClosed
			}
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
