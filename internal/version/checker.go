package version

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// UpdateAvailableMsg lands in the watch TUI when a newer tl release
// exists; the footer picks up LatestVersion as a hint.
type UpdateAvailableMsg struct {
	CurrentVersion string
	LatestVersion  string
	UpdateCommand  string
}

// CheckAsync returns a command the TUI schedules from Init. It consults
// the on-disk check cache first and only hits GitHub when the cache is
// stale, so launching tl repeatedly stays quiet. Up to date means no
// message at all.
func CheckAsync(currentVersion string) tea.Cmd {
	return func() tea.Msg {
		if IsDevelopmentVersion(currentVersion) {
			return nil
		}

		if cached, err := LoadCache(); err == nil && IsCacheValid(cached, currentVersion) {
			if cached.HasUpdate {
				return updateMsg(currentVersion, cached.LatestVersion)
			}
			return nil
		}

		result := Check(currentVersion)

		// Network errors are not worth caching; try again next launch.
		if result.Error == nil {
			_ = SaveCache(&CacheEntry{
				LatestVersion:  result.LatestVersion,
				CurrentVersion: currentVersion,
				CheckedAt:      time.Now(),
				HasUpdate:      result.HasUpdate,
			})
		}

		if result.HasUpdate {
			return updateMsg(currentVersion, result.LatestVersion)
		}
		return nil
	}
}

func updateMsg(current, latest string) tea.Msg {
	return UpdateAvailableMsg{
		CurrentVersion: current,
		LatestVersion:  latest,
		UpdateCommand:  UpdateCommand(latest),
	}
}
