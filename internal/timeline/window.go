// Package timeline maintains the bounded, date-bucketed activity window
// and the version cursor the sync core uses as its incremental watermark.
//
// The window is a sliding cache over the backend's full history: buckets
// ordered descending by date, capped at a maximum bucket count, with the
// oldest dates evicted first. Merges deduplicate by activity ID, which
// makes them idempotent and commutative; overlapping fetches can therefore
// land in any order without corrupting the window.
package timeline

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/marcus/tl/internal/models"
)

// DefaultMaxItems is the bucket cap applied when no override is configured.
const DefaultMaxItems = 100

// MergeStats summarizes a single merge for notification and diagnostics.
type MergeStats struct {
	Added      int   // activities newly inserted into the window
	Evicted    int   // buckets dropped by the cap
	MaxVersion int64 // highest version among merged-in activities, 0 if none
}

// Window is the bounded timeline window. All mutation goes through its
// methods; Buckets returns copies so readers never observe partial state.
type Window struct {
	mu      sync.RWMutex
	buckets []models.DateBucket
	cursor  int64
	max     int
}

// New creates an empty window. max <= 0 selects DefaultMaxItems.
func New(max int) *Window {
	if max <= 0 {
		max = DefaultMaxItems
	}
	return &Window{max: max}
}

// Cursor returns the highest activity version ever merged into the window.
func (w *Window) Cursor() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cursor
}

// Len returns the current bucket count.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.buckets)
}

// ActivityCount returns the total number of activities across all buckets.
func (w *Window) ActivityCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	n := 0
	for _, b := range w.buckets {
		n += len(b.Activities)
	}
	return n
}

// Buckets returns a deep copy of the window, newest date first.
func (w *Window) Buckets() []models.DateBucket {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]models.DateBucket, len(w.buckets))
	for i, b := range w.buckets {
		out[i] = models.DateBucket{
			Date:       b.Date,
			Activities: append([]models.ActivityRecord(nil), b.Activities...),
		}
	}
	return out
}

// Merge folds newBuckets into the window: same-date buckets gain only
// activities whose ID is not already present (new ones placed before the
// existing ones, most-recent-first), unseen dates are inserted whole.
// Buckets are re-sorted descending by date and the cap is enforced by
// evicting the oldest dates. The cursor advances to the highest version
// among the merged-in activities, never backwards, and the whole update is
// atomic from a reader's perspective.
//
// Merged-in activities have IsNew set; callers clear it once the entrance
// highlight has been shown.
func (w *Window) Merge(newBuckets []models.DateBucket) MergeStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	var stats MergeStats

	index := make(map[string]int, len(w.buckets))
	for i, b := range w.buckets {
		index[b.Date] = i
	}

	for _, nb := range newBuckets {
		incoming := dedupDescending(nb.Activities)

		i, ok := index[nb.Date]
		if !ok {
			for j := range incoming {
				incoming[j].IsNew = true
				stats.Added++
				if incoming[j].Version > stats.MaxVersion {
					stats.MaxVersion = incoming[j].Version
				}
			}
			index[nb.Date] = len(w.buckets)
			w.buckets = append(w.buckets, models.DateBucket{Date: nb.Date, Activities: incoming})
			continue
		}

		existing := w.buckets[i].Activities
		seen := make(map[string]bool, len(existing))
		for _, a := range existing {
			seen[a.ID] = true
		}

		var fresh []models.ActivityRecord
		for _, a := range incoming {
			if seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			a.IsNew = true
			fresh = append(fresh, a)
			stats.Added++
			if a.Version > stats.MaxVersion {
				stats.MaxVersion = a.Version
			}
		}
		if len(fresh) > 0 {
			// New activities are assumed newer than anything already in the
			// bucket, so prepending preserves most-recent-first order.
			w.buckets[i].Activities = append(fresh, existing...)
		}
	}

	sort.Slice(w.buckets, func(i, j int) bool {
		return w.buckets[i].Date > w.buckets[j].Date
	})

	if len(w.buckets) > w.max {
		stats.Evicted = len(w.buckets) - w.max
		evictedOldest := w.buckets[w.max].Date
		w.buckets = w.buckets[:w.max]
		slog.Info("timeline window cap exceeded, evicting oldest buckets",
			"evicted", stats.Evicted, "from_date", evictedOldest, "cap", w.max)
	}

	// Cursor is computed from merged-in activities only and is monotonic
	// even when fetch completions interleave out of order.
	if stats.MaxVersion > w.cursor {
		w.cursor = stats.MaxVersion
	}

	return stats
}

// ClearNewFlags drops the IsNew marker from every activity in the window.
func (w *Window) ClearNewFlags() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.buckets {
		for j := range w.buckets[i].Activities {
			w.buckets[i].Activities[j].IsNew = false
		}
	}
}

// ResetCursor forces the cursor to zero without touching the buckets.
// Used by the full-refresh recovery strategy to restart incremental sync
// as if from scratch while preserving the cached window.
func (w *Window) ResetCursor() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cursor = 0
}

// Clear empties the window and resets the cursor to zero. Only the
// destructive-reset recovery strategy and explicit cache wipes call this.
func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buckets = nil
	w.cursor = 0
}

// Restore replaces the window contents from a persisted cache snapshot.
// Buckets are re-sorted and capped; the cursor is taken as given. Intended
// for warm start only, before any merge has happened.
func (w *Window) Restore(buckets []models.DateBucket, cursor int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	restored := make([]models.DateBucket, 0, len(buckets))
	for _, b := range buckets {
		restored = append(restored, models.DateBucket{
			Date:       b.Date,
			Activities: dedupDescending(b.Activities),
		})
	}
	sort.Slice(restored, func(i, j int) bool {
		return restored[i].Date > restored[j].Date
	})
	if len(restored) > w.max {
		restored = restored[:w.max]
	}
	w.buckets = restored
	w.cursor = cursor
}

// dedupDescending copies activities, drops duplicate IDs (first occurrence
// wins) and sorts the result descending by start time.
func dedupDescending(activities []models.ActivityRecord) []models.ActivityRecord {
	seen := make(map[string]bool, len(activities))
	out := make([]models.ActivityRecord, 0, len(activities))
	for _, a := range activities {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime > out[j].StartTime
	})
	return out
}
