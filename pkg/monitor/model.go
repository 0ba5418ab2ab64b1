// Package monitor is the Bubble Tea TUI for the live activity timeline:
// a scrollable, date-bucketed list fed by the sync engine, with toasts
// for background arrivals and a markdown detail view per activity.
package monitor

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/tl/internal/models"
	"github.com/marcus/tl/internal/notify"
	"github.com/marcus/tl/internal/sync"
	"github.com/marcus/tl/internal/version"
)

// Model is the main Bubble Tea model for the timeline TUI
type Model struct {
	Engine *sync.Engine

	// Window dimensions
	Width  int
	Height int

	// Timeline snapshot and flattened rows for selection
	Buckets []models.DateBucket
	Rows    []row

	// UI state
	Cursor       int // index into Rows, always on an activity row
	ScrollOffset int
	Detail       *models.ActivityRecord // open detail view, nil when closed
	Toasts       []Toast

	// Search state
	SearchMode  bool            // typing in the filter bar
	SearchQuery string          // active title filter
	SearchInput textinput.Model // text input for search (cursor support)

	Refreshing  bool
	Err         error
	LastRefresh time.Time

	// Version is the running binary version; a newer release shows a hint
	// in the footer.
	Version         string
	UpdateAvailable string

	// atLatest is shared with the engine: true while the viewport sits at
	// the live edge, where merges stay silent.
	atLatest *atomic.Bool
}

// New builds the TUI model around a running engine.
func New(engine *sync.Engine) Model {
	input := textinput.New()
	input.Placeholder = "filter activities"
	input.CharLimit = 80

	m := Model{
		Engine:      engine,
		SearchInput: input,
		atLatest:    &atomic.Bool{},
	}
	m.atLatest.Store(true)
	m.snapshotWindow()
	return m
}

// AtLatest returns the live-edge flag for wiring into the engine's
// notification gate.
func (m Model) AtLatest() func() bool {
	flag := m.atLatest
	return func() bool { return flag.Load() }
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.scheduleTick()}
	if m.Version != "" && !version.IsDevelopmentVersion(m.Version) {
		cmds = append(cmds, version.CheckAsync(m.Version))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.clampScroll()
		return m, nil

	case TickMsg:
		m.snapshotWindow()
		if m.atLatest.Load() {
			// Everything on screen at the live edge counts as seen.
			m.Engine.Window().ClearNewFlags()
		}
		return m, m.scheduleTick()

	case ToastShowMsg:
		m.Toasts = append(m.Toasts, Toast{
			Handle:  msg.Handle,
			Kind:    msg.Kind,
			Count:   msg.Payload.Count,
			ShownAt: time.Now(),
		})
		m.snapshotWindow()
		var cmd tea.Cmd
		if msg.Payload.AutoDismiss > 0 {
			h := msg.Handle
			cmd = tea.Tick(msg.Payload.AutoDismiss, func(time.Time) tea.Msg {
				return ToastDismissMsg{Handle: h}
			})
		}
		return m, cmd

	case ToastDismissMsg:
		m.removeToast(msg.Handle)
		return m, nil

	case version.UpdateAvailableMsg:
		m.UpdateAvailable = msg.LatestVersion
		return m, nil

	case RefreshDoneMsg:
		m.Refreshing = false
		m.Err = msg.Err
		if msg.Err == nil {
			m.LastRefresh = time.Now()
		}
		m.snapshotWindow()
		return m, nil
	}

	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	return m.renderView()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Search mode: forward most keys to textinput for cursor support.
	if m.SearchMode {
		switch msg.String() {
		case "esc":
			m.SearchMode = false
			m.SearchQuery = ""
			m.SearchInput.SetValue("")
			m.SearchInput.Blur()
			m.snapshotWindow()
			return m, nil
		case "enter":
			m.SearchMode = false
			m.SearchInput.Blur()
			return m, nil
		case "ctrl+c":
			return m, tea.Quit
		}
		var inputCmd tea.Cmd
		m.SearchInput, inputCmd = m.SearchInput.Update(msg)
		if q := m.SearchInput.Value(); q != m.SearchQuery {
			m.SearchQuery = q
			m.snapshotWindow()
		}
		return m, inputCmd
	}

	// Detail view swallows navigation until closed.
	if m.Detail != nil {
		switch msg.String() {
		case "q", "esc", "enter":
			m.Detail = nil
		case "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "j", "down":
		m.moveCursor(1)
	case "k", "up":
		m.moveCursor(-1)
	case "g", "home":
		m.cursorToFirst()
		m.ScrollOffset = 0
	case "G", "end":
		m.cursorToLast()
	case "ctrl+d", "pgdown":
		for i := 0; i < m.pageSize(); i++ {
			m.moveCursor(1)
		}
	case "ctrl+u", "pgup":
		for i := 0; i < m.pageSize(); i++ {
			m.moveCursor(-1)
		}

	case "enter":
		if a := m.selectedActivity(); a != nil {
			m.Detail = a
		}

	case "/":
		m.SearchMode = true
		return m, m.SearchInput.Focus()

	case "esc":
		if m.SearchQuery != "" {
			m.SearchQuery = ""
			m.SearchInput.SetValue("")
			m.snapshotWindow()
		}

	case "r":
		if !m.Refreshing {
			m.Refreshing = true
			return m, m.doRefresh()
		}

	case "x":
		// Dismiss the oldest toast.
		if len(m.Toasts) > 0 {
			m.removeToast(m.Toasts[0].Handle)
		}
	}

	m.updateAtLatest()
	return m, nil
}

// snapshotWindow re-reads the shared window and rebuilds the flattened
// row list, keeping the cursor on a valid activity row. The active filter
// narrows the rows without touching the underlying window.
func (m *Model) snapshotWindow() {
	m.Buckets = m.Engine.Window().Buckets()
	m.Rows = m.Rows[:0]
	query := strings.ToLower(m.SearchQuery)
	for bi := range m.Buckets {
		var acts []row
		for ai := range m.Buckets[bi].Activities {
			if query != "" && !matchesQuery(&m.Buckets[bi].Activities[ai], query) {
				continue
			}
			acts = append(acts, row{kind: rowActivity, bucket: bi, act: ai})
		}
		if len(acts) == 0 {
			continue
		}
		m.Rows = append(m.Rows, row{kind: rowHeader, bucket: bi})
		m.Rows = append(m.Rows, acts...)
	}
	if len(m.Rows) == 0 {
		m.Cursor, m.ScrollOffset = 0, 0
	}
	if m.Cursor >= len(m.Rows) {
		m.cursorToLast()
	}
	if m.Cursor < len(m.Rows) && m.Rows[m.Cursor].kind != rowActivity {
		m.moveCursor(1)
	}
	m.clampScroll()
	m.updateAtLatest()
}

// matchesQuery checks an activity against the lowercased filter text.
func matchesQuery(a *models.ActivityRecord, query string) bool {
	return strings.Contains(strings.ToLower(a.Title), query) ||
		strings.Contains(strings.ToLower(a.Description), query)
}

// selectedActivity returns the activity under the cursor, nil when the
// timeline is empty.
func (m Model) selectedActivity() *models.ActivityRecord {
	if m.Cursor < 0 || m.Cursor >= len(m.Rows) {
		return nil
	}
	r := m.Rows[m.Cursor]
	if r.kind != rowActivity {
		return nil
	}
	a := m.Buckets[r.bucket].Activities[r.act]
	return &a
}

// moveCursor shifts the cursor by one activity row in the given
// direction, skipping headers.
func (m *Model) moveCursor(dir int) {
	i := m.Cursor + dir
	for i >= 0 && i < len(m.Rows) {
		if m.Rows[i].kind == rowActivity {
			m.Cursor = i
			break
		}
		i += dir
	}
	m.clampScroll()
	m.updateAtLatest()
}

func (m *Model) cursorToFirst() {
	for i, r := range m.Rows {
		if r.kind == rowActivity {
			m.Cursor = i
			break
		}
	}
	m.clampScroll()
	m.updateAtLatest()
}

func (m *Model) cursorToLast() {
	for i := len(m.Rows) - 1; i >= 0; i-- {
		if m.Rows[i].kind == rowActivity {
			m.Cursor = i
			break
		}
	}
	m.clampScroll()
	m.updateAtLatest()
}

// firstActivityRow returns the index of the newest activity, -1 when
// empty.
func (m Model) firstActivityRow() int {
	for i, r := range m.Rows {
		if r.kind == rowActivity {
			return i
		}
	}
	return -1
}

// updateAtLatest recomputes the live-edge flag: the viewport is at the
// latest when the cursor sits on the newest activity with no scroll.
func (m *Model) updateAtLatest() {
	first := m.firstActivityRow()
	m.atLatest.Store(first == -1 || (m.Cursor == first && m.ScrollOffset == 0))
}

// pageSize is the number of timeline lines visible at once.
func (m Model) pageSize() int {
	if m.Height == 0 {
		// No WindowSizeMsg yet; don't clamp anything.
		return 1 << 16
	}
	// Header, footer, panel border.
	h := m.Height - 4
	if h < 1 {
		return 1
	}
	return h
}

// clampScroll keeps the cursor row inside the visible page.
func (m *Model) clampScroll() {
	page := m.pageSize()
	if m.Cursor < m.ScrollOffset {
		m.ScrollOffset = m.Cursor
	}
	if m.Cursor >= m.ScrollOffset+page {
		m.ScrollOffset = m.Cursor - page + 1
	}
	if m.ScrollOffset < 0 {
		m.ScrollOffset = 0
	}
}

// removeToast drops the toast with the given handle, if still shown.
func (m *Model) removeToast(h notify.Handle) {
	for i, t := range m.Toasts {
		if t.Handle == h {
			m.Toasts = append(m.Toasts[:i], m.Toasts[i+1:]...)
			return
		}
	}
}
