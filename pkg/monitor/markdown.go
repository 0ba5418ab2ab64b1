package monitor

import (
	"fmt"
	"strings"

	"github.com/marcus/tl/internal/output"
)

// renderDetail renders the full-screen detail view for the selected
// activity: metadata header plus the markdown description and the event
// trail.
func (m Model) renderDetail() string {
	a := m.Detail
	width := m.Width - 8
	if width < 20 {
		width = 20
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(a.Title))
	sb.WriteString("\n")
	sb.WriteString(subtleStyle.Render(fmt.Sprintf("%s – %s  (%s)",
		output.FormatClock(a.StartTime),
		output.FormatClock(a.EndTime),
		output.FormatDuration(a.StartTime, a.EndTime))))
	sb.WriteString("\n")

	if a.Description != "" {
		rendered, err := output.RenderMarkdownWithWidth(a.Description, width)
		if err != nil {
			rendered = a.Description
		}
		sb.WriteString("\n")
		sb.WriteString(rendered)
		sb.WriteString("\n")
	}

	if len(a.EventSummaries) > 0 {
		sb.WriteString("\n")
		sb.WriteString(titleStyle.Render("Events"))
		sb.WriteString("\n")
		for _, ev := range a.EventSummaries {
			sb.WriteString(fmt.Sprintf("  %s  %s\n",
				timestampStyle.Render(output.FormatClock(ev.Timestamp)), ev.Label))
		}
	}

	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render("esc/q back"))

	return detailStyle.Width(m.Width - 4).Render(sb.String())
}
