// Package notify is the side channel for user-facing sync notices. The
// sync core emits through a Sink so the same pipeline can drive a TUI
// toast, a log line, or a test spy.
package notify

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Kind selects the visual style of a notice.
type Kind int

const (
	// KindNewActivity announces activity that arrived while the user was
	// scrolled away from the live edge.
	KindNewActivity Kind = iota
	// KindRetrying signals that the last fetch exhausted its retries and
	// the client is waiting for the next trigger.
	KindRetrying
)

// String returns the kind's log label.
func (k Kind) String() string {
	switch k {
	case KindNewActivity:
		return "new_activity"
	case KindRetrying:
		return "retrying"
	default:
		return "unknown"
	}
}

// Auto-dismiss durations per kind. Manual dismiss is always available in
// sinks that render something.
const (
	DismissAfter      = 5 * time.Second
	RetryDismissAfter = 3 * time.Second
)

// Payload carries what a sink needs to render a notice.
type Payload struct {
	Count       int           // new activities announced (KindNewActivity)
	AutoDismiss time.Duration // sink hides the notice after this long
}

// Handle identifies a shown notice for manual dismissal.
type Handle int64

// Sink renders notices. Implementations must not block the caller and
// must swallow their own rendering failures; the sync pipeline never
// inspects the outcome.
type Sink interface {
	Show(kind Kind, payload Payload) Handle
	Dismiss(h Handle)
}

// AutoDismissFor returns the standard duration for a kind.
func AutoDismissFor(kind Kind) time.Duration {
	if kind == KindRetrying {
		return RetryDismissAfter
	}
	return DismissAfter
}

// LogSink writes notices to slog. Used by headless commands.
type LogSink struct {
	next atomic.Int64
}

// Show logs the notice and returns a fresh handle.
func (s *LogSink) Show(kind Kind, payload Payload) Handle {
	h := Handle(s.next.Add(1))
	switch kind {
	case KindNewActivity:
		slog.Info("new activity available", "count", payload.Count)
	case KindRetrying:
		slog.Warn("sync retrying after failure")
	}
	return h
}

// Dismiss is a no-op for log output.
func (s *LogSink) Dismiss(Handle) {}
