package resilience

import (
	"context"
	"fmt"
	"time"
)

// Bounded runs fn under a deadline and returns its value. fn receives a
// context that is cancelled at the deadline and must stop work that would be
// unsafe to finish afterwards; Bounded itself returns as soon as the deadline
// passes without waiting for fn. A non-positive limit runs fn unbounded.
func Bounded[T any](ctx context.Context, limit time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if limit <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := fn(ctx)
		done <- result{val, err}
	}()

	var zero T
	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		if cause := context.Cause(ctx); cause != context.DeadlineExceeded {
			return zero, fmt.Errorf("%s: cancelled: %w", name, cause)
		}
		return zero, fmt.Errorf("%s: %w after %v", name, context.DeadlineExceeded, limit)
	}
}

// WithTimeout is Bounded for functions that only return an error.
func WithTimeout(ctx context.Context, limit time.Duration, name string, fn func(ctx context.Context) error) error {
	_, err := Bounded(ctx, limit, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
