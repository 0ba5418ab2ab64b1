package monitor

import (
	stdsync "sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/tl/internal/notify"
)

// sender is the part of *tea.Program the sink needs. Narrowed for
// tests.
type sender interface {
	Send(msg tea.Msg)
}

// ProgramSink bridges the sync core's notifications into the Bubble Tea
// event loop. Show and Dismiss run on engine goroutines; Program.Send is
// safe for that.
//
// The program is attached after construction because the tea.Program
// itself is built around the model that the engine (and therefore the
// sink) must already exist for.
type ProgramSink struct {
	mu   stdsync.Mutex
	p    sender
	next atomic.Int64
}

// SetProgram attaches the running program. Notices shown before this is
// called are dropped.
func (s *ProgramSink) SetProgram(p sender) {
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
}

// Show forwards the notice as a ToastShowMsg.
func (s *ProgramSink) Show(kind notify.Kind, payload notify.Payload) notify.Handle {
	h := notify.Handle(s.next.Add(1))
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p != nil {
		p.Send(ToastShowMsg{Handle: h, Kind: kind, Payload: payload})
	}
	return h
}

// Dismiss forwards a manual dismissal.
func (s *ProgramSink) Dismiss(h notify.Handle) {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p != nil {
		p.Send(ToastDismissMsg{Handle: h})
	}
}
