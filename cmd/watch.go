package cmd

import (
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/marcus/tl/internal/config"
	"github.com/marcus/tl/internal/db"
	"github.com/marcus/tl/internal/events"
	"github.com/marcus/tl/internal/output"
	"github.com/marcus/tl/internal/sync"
	"github.com/marcus/tl/internal/syncclient"
	"github.com/marcus/tl/internal/timeline"
	"github.com/marcus/tl/pkg/monitor"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live TUI view of the activity timeline",
	Long: `Launch a live-updating timeline of your tracked activities.

The view follows the live edge: new activities merge in silently while you
are at the top, and announce themselves with a toast when you have scrolled
away. Sync runs in the background over push events and periodic health
probes.

Key bindings:
  j/k, ↑/↓   Move between activities
  g / G      Jump to newest / oldest
  Enter      Open activity details
  Esc        Close details
  r          Force full refresh
  x          Dismiss notification
  q          Quit`,
	GroupID: "core",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Redirect logs away from the terminal the TUI owns.
		logPath, _ := cmd.Flags().GetString("log-file")
		if logPath == "" {
			logPath = os.DevNull
		}
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			output.Error("open log file: %v", err)
			return err
		}
		defer logFile.Close()
		setupLogging(logFile)

		client := syncclient.New(config.GetServerURL(), config.GetAPIKey())

		window := timeline.New(sync.MaxTimelineItems)
		cache, err := openCache()
		if err != nil {
			// Degraded but usable: run without warm start or persistence.
			slog.Warn("cache unavailable, running without persistence", "err", err)
		} else {
			defer cache.Close()
			if buckets, cursor, err := cache.LoadWindow(sync.MaxTimelineItems); err != nil {
				slog.Warn("cache load failed, starting cold", "err", err)
			} else if len(buckets) > 0 {
				window.Restore(buckets, cursor)
			}
		}

		sink := &monitor.ProgramSink{}
		opts := sync.Options{
			Fetcher:        client,
			Window:         window,
			Sink:           sink,
			FetchLimit:     config.GetFetchLimit(),
			HealthInterval: config.GetHealthInterval(),
		}
		if cache != nil {
			opts.Cache = cache
		}

		engine := sync.NewEngine(opts)
		model := monitor.New(engine)
		model.Version = version
		// Engine options can only take the gate after the model exists.
		engine.SetAtLatest(model.AtLatest())

		p := tea.NewProgram(model, tea.WithAltScreen())
		sink.SetProgram(p)

		engine.Start()
		defer engine.Close()
		go engine.Sync() // catch up from the cached cursor

		if config.GetPushEnabled() {
			wsURL, err := client.WebsocketURL()
			if err != nil {
				slog.Warn("push disabled, bad websocket url", "err", err)
			} else {
				sub := events.NewSubscriber(wsURL, config.GetAPIKey(), func(raw []byte) {
					// Heartbeats and channel acks stay out of the pipeline.
					if events.ShouldSync(raw) {
						engine.HandleEvent(raw)
					}
				})
				sub.Start()
				defer sub.Close()
			}
		}

		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running watch: %w", err)
		}
		return nil
	},
}

// openCache opens the activity cache at its configured or default path.
func openCache() (*db.DB, error) {
	path := config.GetCachePath()
	if path == "" {
		var err error
		path, err = db.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return db.Open(path)
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("log-file", "", "Write logs to this file instead of discarding them")
}
