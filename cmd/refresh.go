package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/tl/internal/config"
	"github.com/marcus/tl/internal/notify"
	"github.com/marcus/tl/internal/output"
	"github.com/marcus/tl/internal/sync"
	"github.com/marcus/tl/internal/syncclient"
	"github.com/marcus/tl/internal/timeline"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run a headless full refresh into the local cache",
	Long: `Fetch the latest activities from the backend and rewrite the local
cache, without opening the TUI. Useful from cron or before going offline.`,
	GroupID: "core",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := syncclient.New(config.GetServerURL(), config.GetAPIKey())

		window := timeline.New(sync.MaxTimelineItems)
		cache, err := openCache()
		if err != nil {
			output.Error("open cache: %v", err)
			return err
		}
		defer cache.Close()
		if buckets, cursor, err := cache.LoadWindow(sync.MaxTimelineItems); err == nil {
			window.Restore(buckets, cursor)
		}

		engine := sync.NewEngine(sync.Options{
			Fetcher: client,
			Window:  window,
			Sink:    &notify.LogSink{},
			Cache:   cache,
		})
		defer engine.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
		defer cancel()
		if err := engine.Refresh(ctx); err != nil {
			output.Error("refresh failed: %v", err)
			return err
		}

		output.Success("Refreshed: %d activities, cursor %d",
			window.ActivityCount(), window.Cursor())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
