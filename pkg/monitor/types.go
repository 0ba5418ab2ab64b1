package monitor

import (
	"time"

	"github.com/marcus/tl/internal/notify"
)

// Minimum terminal size before the view degrades to a compact rendering.
const (
	MinWidth  = 40
	MinHeight = 10
)

// TickMsg drives the periodic view refresh (window snapshot + clock).
type TickMsg struct {
	Time time.Time
}

// ToastShowMsg is sent by the notification sink when the sync core emits
// a notice.
type ToastShowMsg struct {
	Handle  notify.Handle
	Kind    notify.Kind
	Payload notify.Payload
}

// ToastDismissMsg removes a toast, either from its auto-dismiss timer or
// a manual dismiss.
type ToastDismissMsg struct {
	Handle notify.Handle
}

// RefreshDoneMsg reports the outcome of a manual full refresh.
type RefreshDoneMsg struct {
	Err error
}

// Toast is one visible notice.
type Toast struct {
	Handle  notify.Handle
	Kind    notify.Kind
	Count   int
	ShownAt time.Time
}

// rowKind discriminates flattened timeline rows.
type rowKind int

const (
	rowHeader rowKind = iota
	rowActivity
)

// row addresses one rendered line back into the bucket snapshot.
type row struct {
	kind   rowKind
	bucket int
	act    int
}
