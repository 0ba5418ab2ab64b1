package sync

import (
	stdsync "sync"
	"time"
)

// State is the process-wide sync state. It is owned and mutated by the
// sync core only; everything else reads value snapshots. A single mutex
// keeps the fields consistent under overlapping fetch completions.
type State struct {
	mu                  stdsync.RWMutex
	healthy             bool
	lastSyncTime        time.Time
	consecutiveFailures int
	pendingUpdates      int

	now func() time.Time // injected in tests
}

// Snapshot is a read-only copy of State for status display.
type Snapshot struct {
	Healthy             bool
	LastSyncTime        time.Time
	ConsecutiveFailures int
	PendingUpdates      int
}

// NewState returns a State that starts healthy; the health monitor's
// immediate first probe corrects that within one cycle if the backend is
// unreachable.
func NewState() *State {
	return &State{healthy: true, now: time.Now}
}

// Snapshot returns a consistent copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Healthy:             s.healthy,
		LastSyncTime:        s.lastSyncTime,
		ConsecutiveFailures: s.consecutiveFailures,
		PendingUpdates:      s.pendingUpdates,
	}
}

// ConsecutiveFailures returns the current terminal-failure streak.
func (s *State) ConsecutiveFailures() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.consecutiveFailures
}

// recordSuccess marks any successful fetch: retry-controller success,
// health probe success, or a recovery strategy completing.
func (s *State) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = true
	s.lastSyncTime = s.now()
	s.consecutiveFailures = 0
}

// recordFailure marks a terminal failure (retries exhausted, or a probe
// miss) and returns the new streak length.
func (s *State) recordFailure() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = false
	s.consecutiveFailures++
	return s.consecutiveFailures
}

// beginUpdate and endUpdate bracket an in-flight merge. The counter is
// diagnostic only.
func (s *State) beginUpdate() {
	s.mu.Lock()
	s.pendingUpdates++
	s.mu.Unlock()
}

func (s *State) endUpdate() {
	s.mu.Lock()
	if s.pendingUpdates > 0 {
		s.pendingUpdates--
	}
	s.mu.Unlock()
}
