package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/marcus/tl/internal/timeline"
)

// Recovery escalates through increasingly drastic refresh strategies once
// the incremental path has failed RecoveryThreshold times in a row:
//
//  1. partial refresh — re-fetch a small recent page and merge it over the
//     live edge;
//  2. full refresh — restart the cursor at zero and merge a larger page,
//     keeping cached buckets the refresh doesn't touch;
//  3. destructive reset — drop the whole window, cursor to zero, reseed
//     with a minimal page.
//
// Strategies run in order and stop at the first success. A strategy's
// failure is logged and the next one runs; if all fail the client stays
// degraded until the next probe success or a manual refresh.
type Recovery struct {
	fetcher Fetcher
	window  *timeline.Window
	state   *State
}

// NewRecovery builds the recovery runner over the shared window and state.
func NewRecovery(f Fetcher, w *timeline.Window, state *State) *Recovery {
	return &Recovery{fetcher: f, window: w, state: state}
}

// strategy is one fallback step. Returned stats are logged only.
type strategy struct {
	name string
	run  func(ctx context.Context) (timeline.MergeStats, error)
}

// Run executes the fallback chain. It returns the name of the strategy
// that succeeded, or an error when all of them failed.
func (r *Recovery) Run(ctx context.Context) (string, error) {
	strategies := []strategy{
		{name: "partial_refresh", run: r.partialRefresh},
		{name: "full_refresh", run: r.FullRefresh},
		{name: "destructive_reset", run: r.destructiveReset},
	}

	for _, s := range strategies {
		stats, err := s.run(ctx)
		if err != nil {
			slog.Warn("recovery strategy failed", "strategy", s.name, "err", err)
			continue
		}
		r.state.recordSuccess()
		slog.Info("recovery succeeded",
			"strategy", s.name, "added", stats.Added, "cursor", r.window.Cursor())
		return s.name, nil
	}

	slog.Error("all recovery strategies failed, staying degraded")
	return "", fmt.Errorf("all recovery strategies failed")
}

// partialRefresh merges a small page of the most recent activities over
// the live edge without touching the cursor.
func (r *Recovery) partialRefresh(ctx context.Context) (timeline.MergeStats, error) {
	buckets, err := fetchRecent(ctx, r.fetcher, PartialRefreshLimit, 0)
	if err != nil {
		return timeline.MergeStats{}, fmt.Errorf("partial refresh: %w", err)
	}
	return r.window.Merge(buckets), nil
}

// FullRefresh restarts incremental sync from scratch: cursor to zero, then
// a larger recent page merged in. Cached buckets the page doesn't cover
// are preserved. Exported because the manual "force refresh" entry point
// is defined as exactly this strategy.
func (r *Recovery) FullRefresh(ctx context.Context) (timeline.MergeStats, error) {
	r.window.ResetCursor()
	buckets, err := fetchRecent(ctx, r.fetcher, FullRefreshLimit, 0)
	if err != nil {
		return timeline.MergeStats{}, fmt.Errorf("full refresh: %w", err)
	}
	return r.window.Merge(buckets), nil
}

// destructiveReset clears the window and cursor, then reseeds from a
// minimal recent page. Lossy: anything evicted here is gone until
// re-fetched.
func (r *Recovery) destructiveReset(ctx context.Context) (timeline.MergeStats, error) {
	r.window.Clear()
	buckets, err := fetchRecent(ctx, r.fetcher, ReseedLimit, 0)
	if err != nil {
		return timeline.MergeStats{}, fmt.Errorf("destructive reset: %w", err)
	}
	return r.window.Merge(buckets), nil
}
