package sync

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/marcus/tl/internal/models"
	"github.com/marcus/tl/internal/notify"
	"github.com/marcus/tl/internal/timeline"
)

// Cache persists the window between runs so a restarted client starts
// warm. Persistence is best-effort; failures are logged and ignored.
type Cache interface {
	SaveBuckets(buckets []models.DateBucket, cursor int64) error
	Clear() error
}

// Options wires an Engine. Fetcher is required; everything else has a
// usable default.
type Options struct {
	Fetcher Fetcher
	Window  *timeline.Window
	State   *State
	Sink    notify.Sink

	// AtLatest reports whether the user's view is at the live edge. The
	// view layer supplies it; nil means "always at latest" (merge
	// silently, never toast).
	AtLatest func() bool

	// Cache is optional local persistence for warm starts.
	Cache Cache

	// FetchLimit overrides IncrementalFetchLimit when > 0.
	FetchLimit int

	// HealthInterval overrides HealthCheckInterval when > 0.
	HealthInterval time.Duration
}

// Engine is the sync pipeline: pushed event → fetch with retry → merge →
// cursor update → notification, with the health monitor running beside it
// and recovery taking over after repeated terminal failures.
//
// The engine tolerates overlapping triggers (event, probe, manual
// refresh): merges deduplicate by ID and the cursor only moves via
// max-merge, so interleaved completions cannot corrupt the window.
type Engine struct {
	fetcher    Fetcher
	window     *timeline.Window
	state      *State
	sink       notify.Sink
	atLatest   func() bool
	cache      Cache
	fetchLimit int

	retrier  *Retrier
	recovery *Recovery
	health   *HealthMonitor

	// closed gates every async continuation: results arriving after
	// Close are discarded instead of applied.
	closed atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine builds the pipeline around a shared window and state.
func NewEngine(opts Options) *Engine {
	if opts.Window == nil {
		opts.Window = timeline.New(0)
	}
	if opts.State == nil {
		opts.State = NewState()
	}
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = IncrementalFetchLimit
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		fetcher:    opts.Fetcher,
		window:     opts.Window,
		state:      opts.State,
		sink:       opts.Sink,
		atLatest:   opts.AtLatest,
		cache:      opts.Cache,
		fetchLimit: opts.FetchLimit,
		ctx:        ctx,
		cancel:     cancel,
	}
	e.retrier = NewRetrier(opts.Fetcher, opts.State)
	e.recovery = NewRecovery(opts.Fetcher, opts.Window, opts.State)
	e.health = NewHealthMonitor(opts.Fetcher, opts.State, opts.Window.Cursor)
	if opts.HealthInterval > 0 {
		e.health.interval = opts.HealthInterval
	}
	return e
}

// Window exposes the timeline for read-only rendering.
func (e *Engine) Window() *timeline.Window { return e.window }

// SetAtLatest installs the live-edge gate after construction. The view
// layer needs the engine to exist before it can build the model that owns
// the flag, so this runs once during wiring, before Start.
func (e *Engine) SetAtLatest(fn func() bool) { e.atLatest = fn }

// Snapshot returns the current sync state for status display.
func (e *Engine) Snapshot() Snapshot { return e.state.Snapshot() }

// Start launches the health monitor. The event pipeline itself is
// demand-driven and needs no goroutine of its own.
func (e *Engine) Start() {
	e.health.Start()
}

// Close tears the engine down: pending retry waits are cancelled, the
// health monitor stops, and any in-flight fetch result is discarded when
// it eventually lands.
func (e *Engine) Close() {
	e.closed.Store(true)
	e.cancel()
	e.health.Stop()
}

// HandleEvent processes one pushed "activity created" notification. A
// payload without an activity id is malformed: it is logged and dropped
// without touching the failure counters. Well-formed events trigger the
// full pipeline.
func (e *Engine) HandleEvent(raw []byte) {
	if e.closed.Load() {
		return
	}

	var ev PushEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		slog.Warn("malformed push event dropped", "err", err)
		return
	}
	if ev.ActivityID == "" {
		slog.Warn("push event missing activity id, dropped", "type", ev.Type)
		return
	}

	slog.Debug("push event received", "activity_id", ev.ActivityID, "cursor", e.window.Cursor())
	e.syncOnce()
}

// Sync runs one incremental pass outside the push path: startup catch-up
// and any caller that wants "check for new data now" without full-refresh
// semantics.
func (e *Engine) Sync() {
	if e.closed.Load() {
		return
	}
	e.syncOnce()
}

// syncOnce runs one trigger through fetch-retry-merge, escalating to
// recovery when the failure streak reaches the threshold.
func (e *Engine) syncOnce() {
	buckets, err := e.retrier.FetchWithRetry(e.ctx, e.window.Cursor(), e.fetchLimit)
	if e.closed.Load() || errors.Is(err, context.Canceled) {
		return
	}

	if err != nil {
		if e.state.ConsecutiveFailures() >= RecoveryThreshold {
			name, rerr := e.recovery.Run(e.ctx)
			if rerr == nil {
				e.persist(name == "destructive_reset")
			}
			return
		}
		e.show(notify.KindRetrying, 0)
		return
	}

	if len(buckets) == 0 {
		return // nothing to merge
	}
	e.apply(buckets)
}

// apply merges fetched buckets exactly once per fetch. The live-edge
// check gates only the toast: data lands in the window either way.
func (e *Engine) apply(buckets []models.DateBucket) {
	e.state.beginUpdate()
	stats := e.window.Merge(buckets)
	e.state.endUpdate()
	e.persist(false)

	if stats.Added > 0 && !e.isAtLatest() {
		e.show(notify.KindNewActivity, stats.Added)
	}
}

// Refresh is the manual "force refresh" entry point: full-refresh
// semantics (cursor restart plus a large recent page) on demand.
func (e *Engine) Refresh(ctx context.Context) error {
	if e.closed.Load() {
		return errors.New("engine closed")
	}
	stats, err := e.recovery.FullRefresh(ctx)
	if err != nil {
		e.state.recordFailure()
		return err
	}
	e.state.recordSuccess()
	e.persist(false)
	slog.Info("manual refresh complete", "added", stats.Added, "cursor", e.window.Cursor())
	return nil
}

func (e *Engine) isAtLatest() bool {
	if e.atLatest == nil {
		return true
	}
	return e.atLatest()
}

// show emits a notice without letting a broken sink take down the
// pipeline.
func (e *Engine) show(kind notify.Kind, count int) {
	if e.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("notification sink panicked", "kind", kind.String(), "panic", r)
		}
	}()
	e.sink.Show(kind, notify.Payload{Count: count, AutoDismiss: notify.AutoDismissFor(kind)})
}

// persist writes the current window through the cache, wiping it first
// after a destructive reset.
func (e *Engine) persist(wipe bool) {
	if e.cache == nil {
		return
	}
	if wipe {
		if err := e.cache.Clear(); err != nil {
			slog.Warn("cache clear failed", "err", err)
		}
	}
	if err := e.cache.SaveBuckets(e.window.Buckets(), e.window.Cursor()); err != nil {
		slog.Warn("cache save failed", "err", err)
	}
}
