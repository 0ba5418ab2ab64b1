package monitor

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// tickInterval paces the periodic window re-snapshot. The push path and
// toasts update the view immediately; the tick only catches silent
// background merges and the clock.
const tickInterval = 2 * time.Second

// scheduleTick returns a command for the next periodic refresh
func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// doRefresh runs a manual full refresh off the update loop.
func (m Model) doRefresh() tea.Cmd {
	engine := m.Engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return RefreshDoneMsg{Err: engine.Refresh(ctx)}
	}
}
