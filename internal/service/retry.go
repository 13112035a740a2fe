package service

import (
	"context"
	"time"

	"github.com/iliyamo/concert-reservation/internal/database"
)

// RetryPolicy bounds how often a store transaction is re-run after a
// retryable failure.  Backoff doubles after each attempt.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy is used when no policy is configured.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Backoff: 50 * time.Millisecond}

// run calls fn until it succeeds, fails with a non-retryable error, the
// attempts are used up or ctx is done.  fn must be a whole transaction:
// a retryable error means it rolled back and left no trace.
func (p RetryPolicy) run(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.Backoff
	for i := 1; ; i++ {
		err := fn(ctx)
		if err == nil || i >= attempts || !database.IsRetryable(err) {
			return err
		}
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
		backoff *= 2
	}
}
