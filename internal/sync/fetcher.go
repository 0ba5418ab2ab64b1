package sync

import (
	"context"
	"errors"

	"github.com/marcus/tl/internal/models"
)

// ErrFetchTimeout marks a fetch attempt that exceeded FetchTimeout.
// Callers treat it like any other fetch failure; the distinct error exists
// for logs and tests.
var ErrFetchTimeout = errors.New("fetch timed out")

// Fetcher is the backend query surface the sync core depends on.
// Satisfied by *syncclient.Client.
//
// FetchIncremental returns activities with version > afterVersion, at most
// limit raw activities, grouped into date buckets. An empty result is
// success, not an error. FetchRecent is the non-incremental "full list"
// endpoint used by the recovery strategies and manual refresh.
type Fetcher interface {
	FetchIncremental(ctx context.Context, afterVersion int64, limit int) ([]models.DateBucket, error)
	FetchRecent(ctx context.Context, limit, offset int) ([]models.DateBucket, error)
}

// fetchIncremental runs one attempt under the fetch timeout, mapping a
// deadline hit to ErrFetchTimeout. The losing fetch of a timed-out race is
// abandoned, not aborted mid-flight; its continuation is simply dropped.
func fetchIncremental(ctx context.Context, f Fetcher, afterVersion int64, limit int) ([]models.DateBucket, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	buckets, err := f.FetchIncremental(attemptCtx, afterVersion, limit)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrFetchTimeout
		}
		return nil, err
	}
	return buckets, nil
}

// fetchRecent runs one full-list attempt under the fetch timeout.
func fetchRecent(ctx context.Context, f Fetcher, limit, offset int) ([]models.DateBucket, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	buckets, err := f.FetchRecent(attemptCtx, limit, offset)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrFetchTimeout
		}
		return nil, err
	}
	return buckets, nil
}
