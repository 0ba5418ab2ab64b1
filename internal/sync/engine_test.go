package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"github.com/marcus/tl/internal/models"
	"github.com/marcus/tl/internal/notify"
	"github.com/marcus/tl/internal/timeline"
)

// spySink records notices for assertion.
type spySink struct {
	mu    stdsync.Mutex
	kinds []notify.Kind
	last  notify.Payload
}

func (s *spySink) Show(kind notify.Kind, payload notify.Payload) notify.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, kind)
	s.last = payload
	return notify.Handle(len(s.kinds))
}

func (s *spySink) Dismiss(notify.Handle) {}

func (s *spySink) shown() []notify.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Kind(nil), s.kinds...)
}

// fakeCache records persistence calls.
type fakeCache struct {
	mu     stdsync.Mutex
	saves  int
	clears int
	cursor int64
}

func (c *fakeCache) SaveBuckets(buckets []models.DateBucket, cursor int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves++
	c.cursor = cursor
	return nil
}

func (c *fakeCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clears++
	return nil
}

func newTestEngine(f Fetcher, opts Options) *Engine {
	opts.Fetcher = f
	e := NewEngine(opts)
	e.retrier.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return e
}

func validEvent() []byte {
	return []byte(`{"type":"activity_created","activityId":"act-1","version":43}`)
}

func TestMaxTimelineItemsIsWindowCap(t *testing.T) {
	// The commands size their windows off this constant.
	if MaxTimelineItems != 100 {
		t.Fatalf("MaxTimelineItems: got %d, want 100", MaxTimelineItems)
	}
	if MaxTimelineItems != timeline.DefaultMaxItems {
		t.Fatalf("cap drifted from the window default: %d vs %d",
			MaxTimelineItems, timeline.DefaultMaxItems)
	}
}

func TestHandleEvent_MalformedDropped(t *testing.T) {
	f := &fakeFetcher{}
	state := NewState()
	e := newTestEngine(f, Options{State: state})

	e.HandleEvent([]byte(`not json`))
	e.HandleEvent([]byte(`{"type":"activity_created"}`)) // missing activityId

	if got := f.incrementalCount(); got != 0 {
		t.Errorf("fetches after malformed events: got %d, want 0", got)
	}
	// Malformed payloads never count as fetch failures.
	if got := state.ConsecutiveFailures(); got != 0 {
		t.Errorf("consecutive failures: got %d, want 0", got)
	}
}

func TestHandleEvent_MergesSilentlyAtLiveEdge(t *testing.T) {
	day := time.Date(2024, 1, 2, 9, 0, 0, 0, time.Local)
	f := &fakeFetcher{
		incrementalFn: func(after int64, limit int) ([]models.DateBucket, error) {
			return singleBucket("2024-01-02", "a", 43, day), nil
		},
	}
	sink := &spySink{}
	w := timeline.New(0)
	e := newTestEngine(f, Options{Window: w, Sink: sink, AtLatest: func() bool { return true }})

	e.HandleEvent(validEvent())

	if w.Cursor() != 43 {
		t.Errorf("cursor: got %d, want 43", w.Cursor())
	}
	if w.ActivityCount() != 1 {
		t.Errorf("activities: got %d, want 1", w.ActivityCount())
	}
	// At the live edge the merge happens without a notice.
	if got := sink.shown(); len(got) != 0 {
		t.Errorf("notices at live edge: got %v, want none", got)
	}
}

func TestHandleEvent_NotifiesAwayFromLiveEdge(t *testing.T) {
	day := time.Date(2024, 1, 2, 9, 0, 0, 0, time.Local)
	f := &fakeFetcher{
		incrementalFn: func(after int64, limit int) ([]models.DateBucket, error) {
			buckets := singleBucket("2024-01-02", "a", 43, day)
			buckets[0].Activities = append(buckets[0].Activities, models.ActivityRecord{
				ID: "b", Title: "activity b", StartTime: day.Add(time.Hour).UnixMilli(), Version: 44,
			})
			return buckets, nil
		},
	}
	sink := &spySink{}
	e := newTestEngine(f, Options{Sink: sink, AtLatest: func() bool { return false }})

	e.HandleEvent(validEvent())

	shown := sink.shown()
	if len(shown) != 1 || shown[0] != notify.KindNewActivity {
		t.Fatalf("notices: got %v, want [new_activity]", shown)
	}
	if sink.last.Count != 2 {
		t.Errorf("notice count: got %d, want 2", sink.last.Count)
	}
	if sink.last.AutoDismiss != notify.DismissAfter {
		t.Errorf("auto dismiss: got %v, want %v", sink.last.AutoDismiss, notify.DismissAfter)
	}
}

func TestHandleEvent_EmptyFetchMergesNothing(t *testing.T) {
	f := &fakeFetcher{} // returns empty success
	sink := &spySink{}
	w := timeline.New(0)
	e := newTestEngine(f, Options{Window: w, Sink: sink, AtLatest: func() bool { return false }})

	e.HandleEvent(validEvent())

	if w.Len() != 0 || w.Cursor() != 0 {
		t.Errorf("window changed on empty fetch: len=%d cursor=%d", w.Len(), w.Cursor())
	}
	if got := sink.shown(); len(got) != 0 {
		t.Errorf("notices: got %v, want none", got)
	}
}

func TestHandleEvent_ExhaustionBelowThresholdNotifiesRetrying(t *testing.T) {
	f := &fakeFetcher{
		incrementalFn: func(int64, int) ([]models.DateBucket, error) {
			return nil, errors.New("backend down")
		},
	}
	sink := &spySink{}
	state := NewState()
	e := newTestEngine(f, Options{State: state, Sink: sink, AtLatest: func() bool { return false }})

	e.HandleEvent(validEvent())

	shown := sink.shown()
	if len(shown) != 1 || shown[0] != notify.KindRetrying {
		t.Fatalf("notices: got %v, want [retrying]", shown)
	}
	if sink.last.AutoDismiss != notify.RetryDismissAfter {
		t.Errorf("auto dismiss: got %v, want %v", sink.last.AutoDismiss, notify.RetryDismissAfter)
	}
	// One exhaustion, threshold is three: no recovery yet.
	if got := f.recentCount(); got != 0 {
		t.Errorf("recovery calls: got %d, want 0", got)
	}
	if got := state.ConsecutiveFailures(); got != 1 {
		t.Errorf("consecutive failures: got %d, want 1", got)
	}
}

func TestHandleEvent_ThresholdTriggersRecovery(t *testing.T) {
	day := time.Date(2024, 1, 2, 9, 0, 0, 0, time.Local)
	f := &fakeFetcher{
		incrementalFn: func(int64, int) ([]models.DateBucket, error) {
			return nil, errors.New("backend down")
		},
		recentFn: func(limit, offset int) ([]models.DateBucket, error) {
			return singleBucket("2024-01-02", "recovered", 50, day), nil
		},
	}
	sink := &spySink{}
	state := NewState()
	w := timeline.New(0)
	cache := &fakeCache{}
	e := newTestEngine(f, Options{Window: w, State: state, Sink: sink, Cache: cache})

	// Two prior exhaustions, the third crosses the threshold.
	e.HandleEvent(validEvent())
	e.HandleEvent(validEvent())
	e.HandleEvent(validEvent())

	if got := f.recentCount(); got != 1 {
		t.Errorf("recovery full-list calls: got %d, want 1", got)
	}
	snap := state.Snapshot()
	if !snap.Healthy || snap.ConsecutiveFailures != 0 {
		t.Errorf("state after recovery: %+v", snap)
	}
	if w.Cursor() != 50 {
		t.Errorf("cursor after recovery: got %d, want 50", w.Cursor())
	}

	cache.mu.Lock()
	saves := cache.saves
	cache.mu.Unlock()
	if saves == 0 {
		t.Error("recovered window should be persisted")
	}
}

func TestRefresh_FullRefreshSemantics(t *testing.T) {
	day := time.Date(2024, 1, 2, 9, 0, 0, 0, time.Local)
	var sawCursorReset bool
	w := timeline.New(0)
	w.Merge(singleBucket("2024-01-01", "seed", 10, day.AddDate(0, 0, -1)))

	f := &fakeFetcher{}
	f.recentFn = func(limit, offset int) ([]models.DateBucket, error) {
		sawCursorReset = w.Cursor() == 0
		return singleBucket("2024-01-02", "fresh", 30, day), nil
	}
	state := NewState()
	cache := &fakeCache{}
	e := newTestEngine(f, Options{Window: w, State: state, Cache: cache})

	if err := e.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sawCursorReset {
		t.Error("refresh should reset the cursor before fetching")
	}
	if limit := func() int { f.mu.Lock(); defer f.mu.Unlock(); return f.recentCalls[0] }(); limit != FullRefreshLimit {
		t.Errorf("refresh limit: got %d, want %d", limit, FullRefreshLimit)
	}
	if w.Cursor() != 30 {
		t.Errorf("cursor: got %d, want 30", w.Cursor())
	}
	if w.Len() != 2 {
		t.Errorf("existing buckets must survive refresh, len=%d", w.Len())
	}
	if !state.Snapshot().Healthy {
		t.Error("state should be healthy after manual refresh")
	}

	cache.mu.Lock()
	defer cache.mu.Unlock()
	if cache.saves != 1 || cache.cursor != 30 {
		t.Errorf("cache: saves=%d cursor=%d, want 1/30", cache.saves, cache.cursor)
	}
}

func TestClose_DiscardsFurtherEvents(t *testing.T) {
	f := &fakeFetcher{}
	e := newTestEngine(f, Options{})
	e.Start()
	e.Close()

	e.HandleEvent(validEvent())
	// The health monitor's immediate probe may have fired once before
	// Close; the closed engine must not fetch for events.
	probes := f.incrementalCount()
	e.HandleEvent(validEvent())
	if got := f.incrementalCount(); got != probes {
		t.Errorf("fetches after close: got %d, want %d", got, probes)
	}

	if err := e.Refresh(context.Background()); err == nil {
		t.Error("refresh on closed engine should fail")
	}
}

func TestEngine_PanickingSinkIsContained(t *testing.T) {
	day := time.Date(2024, 1, 2, 9, 0, 0, 0, time.Local)
	f := &fakeFetcher{
		incrementalFn: func(int64, int) ([]models.DateBucket, error) {
			return singleBucket("2024-01-02", "a", 43, day), nil
		},
	}
	w := timeline.New(0)
	e := newTestEngine(f, Options{Window: w, Sink: panicSink{}, AtLatest: func() bool { return false }})

	e.HandleEvent(validEvent()) // must not panic through

	if w.Cursor() != 43 {
		t.Errorf("merge should survive sink panic, cursor=%d", w.Cursor())
	}
}

type panicSink struct{}

func (panicSink) Show(notify.Kind, notify.Payload) notify.Handle { panic("render failed") }
func (panicSink) Dismiss(notify.Handle)                          {}
