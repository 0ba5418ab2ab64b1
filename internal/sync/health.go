package sync

import (
	"context"
	"log/slog"
	stdsync "sync"
	"time"
)

// HealthMonitor probes the incremental endpoint on its own timer, purely
// to detect backend reachability. It exists because push delivery is
// at-most-once: a dropped notification leaves the client stale until the
// next probe notices the backend is fine and the next trigger catches up.
//
// Probes call the fetcher directly, not through the Retrier: a single
// missed probe just flips the health flag until the next cycle.
type HealthMonitor struct {
	fetcher  Fetcher
	state    *State
	cursor   func() int64
	interval time.Duration

	started  bool
	stopOnce stdsync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewHealthMonitor builds a monitor probing at HealthCheckInterval.
// cursor is read at probe time, so the probe always targets the latest
// known version without restarting the timer on cursor changes.
func NewHealthMonitor(f Fetcher, state *State, cursor func() int64) *HealthMonitor {
	return &HealthMonitor{
		fetcher:  f,
		state:    state,
		cursor:   cursor,
		interval: HealthCheckInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the probe loop. The first probe fires immediately, not
// after the first interval.
func (m *HealthMonitor) Start() {
	m.started = true
	go m.run()
}

func (m *HealthMonitor) run() {
	defer close(m.done)

	m.probe()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.probe()
		case <-m.stop:
			return
		}
	}
}

// probe performs the minimal-cost fetch (limit 1 at the current cursor)
// and records the outcome. The result data is discarded; only
// reachability matters here.
func (m *HealthMonitor) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), FetchTimeout)
	defer cancel()

	_, err := m.fetcher.FetchIncremental(ctx, m.cursor(), 1)
	if err != nil {
		failures := m.state.recordFailure()
		slog.Warn("health probe failed", "consecutive_failures", failures, "err", err)
		return
	}
	m.state.recordSuccess()
	slog.Debug("health probe ok", "cursor", m.cursor())
}

// Stop halts the probe loop and waits for it to exit. Safe to call more
// than once.
func (m *HealthMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	if m.started {
		<-m.done
	}
}
