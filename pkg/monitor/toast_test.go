package monitor

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/tl/internal/notify"
)

type recordingSender struct {
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.msgs = append(r.msgs, msg)
}

func TestProgramSinkForwardsShow(t *testing.T) {
	rec := &recordingSender{}
	sink := &ProgramSink{}
	sink.SetProgram(rec)

	h := sink.Show(notify.KindNewActivity, notify.Payload{Count: 2, AutoDismiss: notify.DismissAfter})

	if len(rec.msgs) != 1 {
		t.Fatalf("messages: got %d, want 1", len(rec.msgs))
	}
	show, ok := rec.msgs[0].(ToastShowMsg)
	if !ok {
		t.Fatalf("message type: got %T", rec.msgs[0])
	}
	if show.Handle != h || show.Kind != notify.KindNewActivity || show.Payload.Count != 2 {
		t.Errorf("show message: got %+v", show)
	}
}

func TestProgramSinkForwardsDismiss(t *testing.T) {
	rec := &recordingSender{}
	sink := &ProgramSink{}
	sink.SetProgram(rec)

	h := sink.Show(notify.KindRetrying, notify.Payload{})
	sink.Dismiss(h)

	if len(rec.msgs) != 2 {
		t.Fatalf("messages: got %d, want 2", len(rec.msgs))
	}
	dismiss, ok := rec.msgs[1].(ToastDismissMsg)
	if !ok || dismiss.Handle != h {
		t.Errorf("dismiss message: got %+v", rec.msgs[1])
	}
}

func TestProgramSinkWithoutProgramDropsQuietly(t *testing.T) {
	sink := &ProgramSink{}
	h1 := sink.Show(notify.KindNewActivity, notify.Payload{Count: 1})
	h2 := sink.Show(notify.KindNewActivity, notify.Payload{Count: 1})
	if h1 == h2 {
		t.Errorf("handles must stay unique even unattached: %v == %v", h1, h2)
	}
	sink.Dismiss(h1) // no panic
}
