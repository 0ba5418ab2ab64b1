package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/marcus/tl/internal/models"
)

// Retrier wraps a Fetcher with bounded backoff. It owns the State
// bookkeeping for both outcomes: any attempt's success resets the failure
// streak, exhausting all attempts extends it and flips the health flag.
// Escalation to recovery is the caller's job, not the Retrier's.
type Retrier struct {
	fetcher  Fetcher
	state    *State
	attempts int
	delays   []time.Duration

	// sleep waits for d or until ctx is done. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrier builds a Retrier with the standard attempt budget and delay
// table.
func NewRetrier(f Fetcher, state *State) *Retrier {
	return &Retrier{
		fetcher:  f,
		state:    state,
		attempts: MaxRetryAttempts,
		delays:   RetryDelays,
		sleep:    sleepCtx,
	}
}

// FetchWithRetry fetches incrementally, retrying failed attempts with the
// configured backoff. It returns the first successful result immediately;
// after the final attempt fails it records a terminal failure and returns
// the last error. The delay before retry k reuses the last table entry
// when the budget outgrows the table. Waits abort when ctx is cancelled,
// so teardown never leaks a pending retry timer.
func (r *Retrier) FetchWithRetry(ctx context.Context, afterVersion int64, limit int) ([]models.DateBucket, error) {
	var lastErr error

	for attempt := 1; attempt <= r.attempts; attempt++ {
		buckets, err := fetchIncremental(ctx, r.fetcher, afterVersion, limit)
		if err == nil {
			r.state.recordSuccess()
			return buckets, nil
		}
		lastErr = err
		slog.Warn("incremental fetch failed",
			"attempt", attempt, "of", r.attempts, "after_version", afterVersion, "err", err)

		if attempt == r.attempts {
			break
		}
		if err := r.sleep(ctx, r.delayFor(attempt)); err != nil {
			// Teardown or caller cancellation: don't count a terminal
			// failure for a fetch we chose to abandon.
			return nil, err
		}
	}

	failures := r.state.recordFailure()
	slog.Warn("incremental fetch exhausted retries",
		"attempts", r.attempts, "consecutive_failures", failures, "err", lastErr)
	return nil, lastErr
}

// delayFor returns the wait after failed attempt k (1-indexed).
func (r *Retrier) delayFor(attempt int) time.Duration {
	i := attempt - 1
	if i >= len(r.delays) {
		i = len(r.delays) - 1
	}
	return r.delays[i]
}

// sleepCtx waits for d, returning early with ctx.Err() on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
