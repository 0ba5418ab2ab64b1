package cmd

import (
	"context"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/marcus/tl/internal/config"
	"github.com/marcus/tl/internal/output"
	"github.com/marcus/tl/internal/syncclient"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Set up the backend connection",
	Long:    `Interactively configure the backend URL and API key, then verify the connection.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			output.Error("load config: %v", err)
			return err
		}

		serverURL := cfg.Server.URL
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
		apiKey := cfg.Server.APIKey
		verify := true

		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Backend URL").
				Description("Where the activity timeline server is running").
				Value(&serverURL),
			huh.NewInput().
				Title("API key").
				Description("Leave empty for an unauthenticated server").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
			huh.NewConfirm().
				Title("Verify connection now?").
				Value(&verify),
		))
		if err := form.Run(); err != nil {
			return err
		}

		cfg.Server.URL = serverURL
		cfg.Server.APIKey = apiKey
		if err := config.Save(cfg); err != nil {
			output.Error("save config: %v", err)
			return err
		}
		output.Success("Configuration saved")

		if verify {
			client := syncclient.New(serverURL, apiKey)
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if _, err := client.Health(ctx); err != nil {
				output.Warning("backend not reachable yet: %v", err)
				return nil
			}
			output.Success("Backend reachable")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
