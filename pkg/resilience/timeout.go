package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout bounds a sink call: fn runs with a context cancelled after
// the limit, and the error names the operation when the limit is hit. A
// non-positive limit runs fn unbounded.
func WithTimeout(ctx context.Context, limit time.Duration, name string, fn func(ctx context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}
	bounded, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(bounded)
	}()
	select {
	case err := <-done:
		return err
	case <-bounded.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", name, ctx.Err())
		}
		return fmt.Errorf("%s: %w after %v", name, context.DeadlineExceeded, limit)
	}
}
