// Package sync keeps the local activity timeline consistent with the
// backend: incremental fetches driven by pushed events, bounded retry with
// backoff, an independent health probe, and layered recovery when the
// incremental path stays broken.
package sync

import (
	"time"

	"github.com/marcus/tl/internal/timeline"
)

// Tunables for the sync pipeline. These mirror the backend's paging
// behavior and are not configurable per call site.
const (
	// MaxTimelineItems is the bucket cap for windows the commands build.
	// Kept equal to the timeline package's own default.
	MaxTimelineItems = timeline.DefaultMaxItems


	// FetchTimeout bounds a single fetch attempt. Timeouts and transport
	// errors are treated identically by callers (both are "fetch failed").
	FetchTimeout = 10 * time.Second

	// MaxRetryAttempts is the total number of fetch invocations a single
	// trigger may cause, the first attempt included.
	MaxRetryAttempts = 3

	// HealthCheckInterval is the probe cadence of the health monitor.
	HealthCheckInterval = 30 * time.Second

	// RecoveryThreshold is the consecutive-failure count at which retry
	// exhaustion escalates to the recovery strategies.
	RecoveryThreshold = 3

	// IncrementalFetchLimit caps raw activities per incremental fetch.
	IncrementalFetchLimit = 50

	// Page sizes used by the recovery strategies, in escalation order.
	PartialRefreshLimit = 20
	FullRefreshLimit    = 50
	ReseedLimit         = 15
)

// RetryDelays is the backoff table consulted before each retry. Attempts
// beyond the table reuse the last entry.
var RetryDelays = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
}

// PushEvent is the payload of a pushed "activity created" notification.
// Delivery is at-most-once and unordered; the health monitor compensates
// for drops. Only ActivityID is required.
type PushEvent struct {
	Type       string `json:"type,omitempty"`
	ActivityID string `json:"activityId"`
	Version    int64  `json:"version,omitempty"`
}
