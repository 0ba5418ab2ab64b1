package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/marcus/tl/internal/models"
	"github.com/marcus/tl/internal/notify"
	"github.com/marcus/tl/internal/output"
)

// renderView renders the complete TUI view
func (m Model) renderView() string {
	if m.Width == 0 || m.Height == 0 {
		return "Loading..."
	}

	if m.Width < MinWidth || m.Height < MinHeight {
		return m.renderCompact()
	}

	if m.Detail != nil {
		return m.renderDetail()
	}

	header := m.renderHeader()
	timeline := m.renderTimeline()
	footer := m.renderFooter()

	parts := []string{header}
	if m.SearchMode || m.SearchQuery != "" {
		parts = append(parts, m.renderSearchBar())
	}
	parts = append(parts, timeline, footer)
	base := lipgloss.JoinVertical(lipgloss.Left, parts...)

	if len(m.Toasts) > 0 {
		return lipgloss.JoinVertical(lipgloss.Left, m.renderToasts(), base)
	}
	return base
}

// renderCompact is the fallback for tiny terminals.
func (m Model) renderCompact() string {
	snap := m.Engine.Snapshot()
	return fmt.Sprintf("tl  %s  %d activities\n(terminal too small)",
		formatHealth(snap.Healthy), m.Engine.Window().ActivityCount())
}

// renderHeader renders the title bar with sync status.
func (m Model) renderHeader() string {
	snap := m.Engine.Snapshot()

	left := titleStyle.Render("Activity Timeline")
	status := formatHealth(snap.Healthy)
	if m.Refreshing {
		status = subtleStyle.Render("refreshing…")
	} else if !snap.Healthy && snap.ConsecutiveFailures > 0 {
		status += subtleStyle.Render(fmt.Sprintf(" (%d failures)", snap.ConsecutiveFailures))
	}

	var last string
	if !snap.LastSyncTime.IsZero() {
		last = subtleStyle.Render("synced " + output.FormatTimeAgo(snap.LastSyncTime))
	}

	gap := m.Width - lipgloss.Width(left) - lipgloss.Width(status) - lipgloss.Width(last) - 4
	if gap < 1 {
		gap = 1
	}
	return " " + left + strings.Repeat(" ", gap) + last + "  " + status
}

// renderSearchBar renders the filter input line.
func (m Model) renderSearchBar() string {
	if m.SearchMode {
		return " / " + m.SearchInput.View()
	}
	return " " + subtleStyle.Render("filter: ") + m.SearchQuery + subtleStyle.Render("  (esc clears)")
}

// renderTimeline renders the scrollable bucket list.
func (m Model) renderTimeline() string {
	innerWidth := m.Width - 4 // border + padding
	page := m.pageSize()

	var lines []string
	if len(m.Rows) == 0 {
		lines = append(lines, subtleStyle.Render("No activity yet. Waiting for sync…"))
	}

	end := m.ScrollOffset + page
	if end > len(m.Rows) {
		end = len(m.Rows)
	}
	for i := m.ScrollOffset; i < end; i++ {
		lines = append(lines, m.renderRow(i, innerWidth))
	}

	content := strings.Join(lines, "\n")
	return panelStyle.Width(m.Width - 2).Height(page).Render(content)
}

// renderRow renders one flattened row, highlighting the cursor.
func (m Model) renderRow(i, width int) string {
	r := m.Rows[i]
	if r.kind == rowHeader {
		b := m.Buckets[r.bucket]
		return bucketHeaderStyle.Render(fmt.Sprintf("%s (%d)", b.Date, len(b.Activities)))
	}

	a := m.Buckets[r.bucket].Activities[r.act]
	line := m.activityLine(&a, width)
	if i == m.Cursor {
		return selectedRowStyle.Render(line)
	}
	return line
}

// activityLine formats a single activity entry.
func (m Model) activityLine(a *models.ActivityRecord, width int) string {
	marker := "  "
	if a.IsNew {
		marker = newMarkerStyle.Render("• ")
	}
	clock := timestampStyle.Render(output.FormatClock(a.StartTime))
	span := subtleStyle.Render(output.FormatDuration(a.StartTime, a.EndTime))

	line := fmt.Sprintf("%s%s  %s  %s", marker, clock, a.Title, span)
	if n := len(a.EventSummaries); n > 0 {
		line += subtleStyle.Render(fmt.Sprintf("  [%d events]", n))
	}
	return ansi.Truncate(line, width, "…")
}

// renderToasts renders the active notices above the timeline.
func (m Model) renderToasts() string {
	var rendered []string
	for _, t := range m.Toasts {
		switch t.Kind {
		case notify.KindNewActivity:
			label := fmt.Sprintf("%d new activities ↑", t.Count)
			if t.Count == 1 {
				label = "1 new activity ↑"
			}
			rendered = append(rendered, toastNewStyle.Render(label))
		case notify.KindRetrying:
			rendered = append(rendered, toastRetryStyle.Render("sync failed, retrying…"))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

// renderFooter renders the key hints.
func (m Model) renderFooter() string {
	hints := "j/k navigate  enter details  g latest  r refresh  x dismiss  q quit"
	count := m.Engine.Window().ActivityCount()
	left := helpStyle.Render(hints)
	counter := fmt.Sprintf("%d activities", count)
	if m.UpdateAvailable != "" {
		counter = m.UpdateAvailable + " available · " + counter
	}
	right := subtleStyle.Render(counter)

	gap := m.Width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return " " + left + strings.Repeat(" ", gap) + right
}
