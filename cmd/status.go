package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/tl/internal/config"
	"github.com/marcus/tl/internal/output"
	"github.com/marcus/tl/internal/syncclient"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show backend reachability and local cache state",
	GroupID: "core",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		serverURL := config.GetServerURL()
		client := syncclient.New(serverURL, config.GetAPIKey())

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		reachable := true
		var healthErr string
		if _, err := client.Health(ctx); err != nil {
			reachable = false
			healthErr = err.Error()
		}

		var cachedActivities int
		var cursor int64
		if cache, err := openCache(); err == nil {
			defer cache.Close()
			if buckets, c, err := cache.LoadWindow(1000); err == nil {
				cursor = c
				for _, b := range buckets {
					cachedActivities += len(b.Activities)
				}
			}
		}

		if asJSON {
			return output.JSON(map[string]interface{}{
				"server":            serverURL,
				"reachable":         reachable,
				"error":             healthErr,
				"cached_activities": cachedActivities,
				"cursor":            cursor,
			})
		}

		output.Info("Server: %s", serverURL)
		if reachable {
			output.Success("Backend reachable")
		} else {
			output.Error("backend unreachable: %s", healthErr)
		}
		output.Info("Cache:  %d activities, cursor %d", cachedActivities, cursor)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().Bool("json", false, "Output as JSON")
}
