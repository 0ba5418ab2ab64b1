package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/tl/internal/config"
	"github.com/marcus/tl/internal/output"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Show the effective configuration",
	Long:    `Print the configuration after applying environment overrides.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		effective := effectiveConfig()
		if asJSON {
			return output.JSON(effective)
		}

		output.Info("server_url:      %s", effective["server_url"])
		output.Info("api_key:         %s", effective["api_key"])
		output.Info("push:            %v", effective["push"])
		output.Info("health_interval: %s", effective["health_interval"])
		output.Info("fetch_limit:     %d", config.GetFetchLimit())
		if p := config.GetCachePath(); p != "" {
			output.Info("cache:           %s", p)
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one effective config value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, ok := effectiveConfig()[args[0]]
		if !ok {
			return fmt.Errorf("unknown config key %q", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write one config value to the config file",
	Long: `Write a value to ~/.config/tl/config.json. Environment variables
still take priority over the file at run time.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		key, value := args[0], args[1]
		switch key {
		case "server_url":
			cfg.Server.URL = value
		case "api_key":
			cfg.Server.APIKey = value
		case "push":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("push wants true or false, got %q", value)
			}
			cfg.Sync.Push = &b
		case "health_interval":
			if _, err := time.ParseDuration(value); err != nil {
				return fmt.Errorf("health_interval wants a duration like 30s: %w", err)
			}
			cfg.Sync.HealthInterval = value
		case "fetch_limit":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return fmt.Errorf("fetch_limit wants a positive integer, got %q", value)
			}
			cfg.Sync.FetchLimit = n
		case "cache":
			cfg.Cache = value
		default:
			return fmt.Errorf("unknown config key %q", key)
		}

		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		output.Success("Set %s", key)
		return nil
	},
}

// effectiveConfig resolves every key through the env-over-file getters,
// masking the API key.
func effectiveConfig() map[string]interface{} {
	masked := ""
	if config.GetAPIKey() != "" {
		masked = "****"
	}
	return map[string]interface{}{
		"server_url":      config.GetServerURL(),
		"api_key":         masked,
		"push":            config.GetPushEnabled(),
		"health_interval": config.GetHealthInterval().String(),
		"fetch_limit":     config.GetFetchLimit(),
		"cache":           config.GetCachePath(),
	}
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configGetCmd, configSetCmd)
	configCmd.Flags().Bool("json", false, "Output as JSON")
}
