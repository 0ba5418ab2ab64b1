package monitor

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/tl/internal/models"
	"github.com/marcus/tl/internal/notify"
	"github.com/marcus/tl/internal/sync"
)

// stubFetcher feeds the engine canned pages.
type stubFetcher struct {
	incremental []models.DateBucket
	recent      []models.DateBucket
}

func (f *stubFetcher) FetchIncremental(ctx context.Context, after int64, limit int) ([]models.DateBucket, error) {
	return f.incremental, nil
}

func (f *stubFetcher) FetchRecent(ctx context.Context, limit, offset int) ([]models.DateBucket, error) {
	return f.recent, nil
}

func testBuckets() []models.DateBucket {
	return []models.DateBucket{
		{
			Date: "2026-08-24",
			Activities: []models.ActivityRecord{
				{ID: "a3", Title: "Afternoon review", StartTime: 1787918400000, EndTime: 1787920200000, Version: 3},
				{ID: "a2", Title: "Wrote report", StartTime: 1787911200000, EndTime: 1787914800000, Version: 2},
			},
		},
		{
			Date: "2026-08-23",
			Activities: []models.ActivityRecord{
				{ID: "a1", Title: "Email triage", StartTime: 1787824800000, EndTime: 1787826600000, Version: 1},
			},
		},
	}
}

// newTestModel builds a model over an engine pre-seeded with testBuckets.
func newTestModel(t *testing.T) Model {
	t.Helper()
	engine := sync.NewEngine(sync.Options{Fetcher: &stubFetcher{}})
	engine.Window().Merge(testBuckets())
	t.Cleanup(engine.Close)

	m := New(engine)
	m.Width = 80
	m.Height = 24
	return m
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func pressKey(t *testing.T, m Model, key string) Model {
	t.Helper()
	updated, _ := m.Update(keyMsg(key))
	next, ok := updated.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", updated)
	}
	return next
}

func TestNewModelFlattensRows(t *testing.T) {
	m := newTestModel(t)

	// 2 headers + 3 activities
	if len(m.Rows) != 5 {
		t.Fatalf("rows: got %d, want 5", len(m.Rows))
	}
	if m.Rows[0].kind != rowHeader {
		t.Errorf("first row should be a date header")
	}
	if m.Rows[1].kind != rowActivity {
		t.Errorf("second row should be an activity")
	}
	if got := m.selectedActivity(); got == nil || got.ID != "a3" {
		t.Errorf("initial selection: got %+v, want a3", got)
	}
}

func TestCursorSkipsHeaders(t *testing.T) {
	m := newTestModel(t)

	m = pressKey(t, m, "j")
	if got := m.selectedActivity(); got == nil || got.ID != "a2" {
		t.Fatalf("after j: got %+v, want a2", got)
	}

	// Next j crosses the 2026-08-23 header.
	m = pressKey(t, m, "j")
	if got := m.selectedActivity(); got == nil || got.ID != "a1" {
		t.Fatalf("after jj: got %+v, want a1", got)
	}

	m = pressKey(t, m, "k")
	if got := m.selectedActivity(); got == nil || got.ID != "a2" {
		t.Fatalf("after jjk: got %+v, want a2", got)
	}
}

func TestAtLatestTracksCursor(t *testing.T) {
	m := newTestModel(t)
	atLatest := m.AtLatest()

	if !atLatest() {
		t.Fatal("fresh model should be at the live edge")
	}

	m = pressKey(t, m, "j")
	if atLatest() {
		t.Error("scrolled away, should not be at the live edge")
	}

	m = pressKey(t, m, "g")
	if !atLatest() {
		t.Error("back at top, should be at the live edge again")
	}
}

func TestEnterOpensAndClosesDetail(t *testing.T) {
	m := newTestModel(t)

	m = pressKey(t, m, "enter")
	if m.Detail == nil || m.Detail.ID != "a3" {
		t.Fatalf("detail after enter: got %+v", m.Detail)
	}

	// Navigation keys are swallowed while the detail view is open.
	m = pressKey(t, m, "j")
	if got := m.selectedActivity(); got == nil || got.ID != "a3" {
		t.Errorf("cursor moved while detail open: %+v", got)
	}

	m = pressKey(t, m, "esc")
	if m.Detail != nil {
		t.Error("detail should close on esc")
	}
}

func TestToastShowAndAutoDismissScheduling(t *testing.T) {
	m := newTestModel(t)

	updated, cmd := m.Update(ToastShowMsg{
		Handle:  7,
		Kind:    notify.KindNewActivity,
		Payload: notify.Payload{Count: 3, AutoDismiss: notify.DismissAfter},
	})
	m = updated.(Model)

	if len(m.Toasts) != 1 || m.Toasts[0].Count != 3 {
		t.Fatalf("toasts: got %+v", m.Toasts)
	}
	if cmd == nil {
		t.Fatal("auto-dismiss should schedule a command")
	}

	updated, _ = m.Update(ToastDismissMsg{Handle: 7})
	m = updated.(Model)
	if len(m.Toasts) != 0 {
		t.Errorf("toast not removed: %+v", m.Toasts)
	}
}

func TestDismissKeyRemovesOldestToast(t *testing.T) {
	m := newTestModel(t)
	m.Toasts = []Toast{
		{Handle: 1, Kind: notify.KindNewActivity, Count: 1},
		{Handle: 2, Kind: notify.KindRetrying},
	}

	m = pressKey(t, m, "x")
	if len(m.Toasts) != 1 || m.Toasts[0].Handle != 2 {
		t.Errorf("after x: got %+v", m.Toasts)
	}
}

func TestFilterNarrowsRows(t *testing.T) {
	m := newTestModel(t)

	m = pressKey(t, m, "/")
	if !m.SearchMode {
		t.Fatal("/ should enter search mode")
	}
	for _, r := range "report" {
		m = pressKey(t, m, string(r))
	}

	// One header plus the single matching activity.
	if len(m.Rows) != 2 {
		t.Fatalf("filtered rows: got %d, want 2", len(m.Rows))
	}
	if got := m.selectedActivity(); got == nil || got.ID != "a2" {
		t.Errorf("filtered selection: got %+v, want a2", got)
	}

	// Enter keeps the filter, esc afterwards clears it.
	m = pressKey(t, m, "enter")
	if m.SearchMode {
		t.Error("enter should leave search mode")
	}
	if m.SearchQuery != "report" {
		t.Errorf("query after enter: got %q", m.SearchQuery)
	}
	m = pressKey(t, m, "esc")
	if m.SearchQuery != "" {
		t.Errorf("query after esc: got %q", m.SearchQuery)
	}
	if len(m.Rows) != 5 {
		t.Errorf("rows after clearing filter: got %d, want 5", len(m.Rows))
	}
}

func TestTickResnapshotsWindow(t *testing.T) {
	m := newTestModel(t)

	// New bucket lands behind the model's back.
	m.Engine.Window().Merge([]models.DateBucket{{
		Date: "2026-08-25",
		Activities: []models.ActivityRecord{
			{ID: "a4", Title: "Planning", StartTime: 1788000000000, EndTime: 1788001800000, Version: 4},
		},
	}})

	updated, cmd := m.Update(TickMsg{Time: time.Now()})
	m = updated.(Model)
	if cmd == nil {
		t.Error("tick should reschedule itself")
	}
	if len(m.Rows) != 7 {
		t.Fatalf("rows after merge: got %d, want 7", len(m.Rows))
	}
	if m.Buckets[0].Date != "2026-08-25" {
		t.Errorf("newest bucket first: got %s", m.Buckets[0].Date)
	}
}

func TestRefreshDoneClearsSpinner(t *testing.T) {
	m := newTestModel(t)
	m.Refreshing = true

	updated, _ := m.Update(RefreshDoneMsg{})
	m = updated.(Model)
	if m.Refreshing {
		t.Error("refreshing flag should clear")
	}
	if m.LastRefresh.IsZero() {
		t.Error("successful refresh should stamp LastRefresh")
	}
}

func TestViewRendersTimeline(t *testing.T) {
	m := newTestModel(t)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = updated.(Model)

	out := m.View()
	if !strings.Contains(out, "2026-08-24") {
		t.Errorf("view missing bucket header:\n%s", out)
	}
	if !strings.Contains(out, "Afternoon review") {
		t.Errorf("view missing activity title:\n%s", out)
	}
	if !strings.Contains(out, "Activity Timeline") {
		t.Errorf("view missing title bar:\n%s", out)
	}
}

func TestViewCompactOnTinyTerminal(t *testing.T) {
	m := newTestModel(t)
	m.Width = 20
	m.Height = 5

	out := m.View()
	if !strings.Contains(out, "terminal too small") {
		t.Errorf("expected compact rendering, got:\n%s", out)
	}
}

func TestDetailViewRendersEvents(t *testing.T) {
	m := newTestModel(t)
	m.Detail = &models.ActivityRecord{
		ID:          "a9",
		Title:       "Deep work block",
		Description: "# Focus\n\nwrote the parser",
		StartTime:   1787911200000,
		EndTime:     1787914800000,
		EventSummaries: []models.EventSummary{
			{Label: "editor: parser.go", Timestamp: 1787911260000},
		},
	}

	out := m.View()
	if !strings.Contains(out, "Deep work block") {
		t.Errorf("detail missing title:\n%s", out)
	}
	if !strings.Contains(out, "editor: parser.go") {
		t.Errorf("detail missing event trail:\n%s", out)
	}
}
