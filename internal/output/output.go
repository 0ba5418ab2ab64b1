// Package output provides styled terminal output helpers (success, error,
// warning, activity formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/tl/internal/models"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	newStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// HealthBadge returns a colored health indicator.
// e.g., "● healthy", "● degraded"
func HealthBadge(healthy bool) string {
	if healthy {
		return successStyle.Render("● healthy")
	}
	return errorStyle.Render("● degraded")
}

// FormatActivityLine formats one activity for list output.
// Format: "15:04  Title  (3 events)" with a marker on unseen entries.
func FormatActivityLine(a *models.ActivityRecord) string {
	var parts []string
	parts = append(parts, subtleStyle.Render(FormatClock(a.StartTime)))
	if a.IsNew {
		parts = append(parts, newStyle.Render("•"))
	}
	parts = append(parts, a.Title)
	if n := len(a.SourceEventIDs); n > 0 {
		parts = append(parts, subtleStyle.Render(fmt.Sprintf("(%d events)", n)))
	}
	return strings.Join(parts, "  ")
}

// FormatBucketHeader formats a date bucket heading, e.g. "2026-08-24 (5)".
func FormatBucketHeader(b *models.DateBucket) string {
	return titleStyle.Render(fmt.Sprintf("%s (%d)", b.Date, len(b.Activities)))
}

// FormatClock renders an epoch-milliseconds timestamp as local wall time.
func FormatClock(ms int64) string {
	return time.UnixMilli(ms).Format("15:04")
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("2006-01-02")
	}
}

// FormatDuration renders an activity's span, e.g. "25m" or "1h05m".
func FormatDuration(startMS, endMS int64) string {
	d := time.Duration(endMS-startMS) * time.Millisecond
	if d < 0 {
		d = 0
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nACTIVITIES:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}
