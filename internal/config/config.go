// Package config handles the global tl configuration stored at
// ~/.config/tl/config.json, with environment variables taking priority
// over the file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ServerConfig holds backend connection settings.
type ServerConfig struct {
	URL    string `json:"url"`
	APIKey string `json:"api_key,omitempty"`
}

// SyncConfig holds sync tuning knobs. Zero values mean "use the default".
type SyncConfig struct {
	Push           *bool  `json:"push,omitempty"`            // nil = default true
	HealthInterval string `json:"health_interval,omitempty"` // duration string, default "30s"
	FetchLimit     int    `json:"fetch_limit,omitempty"`     // default 50
}

// Config is the global tl config stored at ~/.config/tl/config.json.
type Config struct {
	Server ServerConfig `json:"server"`
	Sync   SyncConfig   `json:"sync"`
	Cache  string       `json:"cache,omitempty"` // cache db path override
}

const defaultServerURL = "http://localhost:8080"

// ConfigDir returns ~/.config/tl, creating it if necessary.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "tl")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// Load reads the global config. A missing file is not an error; it yields
// the zero config so every getter falls back to its default.
func Load() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config atomically (temp file + rename).
func Save(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "config-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, filepath.Join(dir, "config.json"))
}

// GetServerURL returns the backend URL.
// Priority: TL_SERVER_URL env > config.json > default.
func GetServerURL() string {
	if v := os.Getenv("TL_SERVER_URL"); v != "" {
		return v
	}
	cfg, err := Load()
	if err == nil && cfg.Server.URL != "" {
		return cfg.Server.URL
	}
	return defaultServerURL
}

// GetAPIKey returns the API key.
// Priority: TL_API_KEY env > config.json. Empty means unauthenticated.
func GetAPIKey() string {
	if v := os.Getenv("TL_API_KEY"); v != "" {
		return v
	}
	cfg, err := Load()
	if err == nil {
		return cfg.Server.APIKey
	}
	return ""
}

// GetPushEnabled returns whether the websocket push subscription is on.
// Priority: TL_PUSH env > config.json sync.push > true.
func GetPushEnabled() bool {
	if v := parseBoolEnv("TL_PUSH"); v != nil {
		return *v
	}
	cfg, err := Load()
	if err == nil && cfg.Sync.Push != nil {
		return *cfg.Sync.Push
	}
	return true
}

// GetHealthInterval returns the health probe interval.
// Priority: TL_HEALTH_INTERVAL env > config.json sync.health_interval > 30s.
func GetHealthInterval() time.Duration {
	if v := os.Getenv("TL_HEALTH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	cfg, err := Load()
	if err == nil && cfg.Sync.HealthInterval != "" {
		if d, err := time.ParseDuration(cfg.Sync.HealthInterval); err == nil && d > 0 {
			return d
		}
	}
	return 30 * time.Second
}

// GetFetchLimit returns the incremental fetch page size.
// Priority: TL_FETCH_LIMIT env > config.json sync.fetch_limit > 50.
func GetFetchLimit() int {
	if v := os.Getenv("TL_FETCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	cfg, err := Load()
	if err == nil && cfg.Sync.FetchLimit > 0 {
		return cfg.Sync.FetchLimit
	}
	return 50
}

// GetCachePath returns the cache db path override from config, or empty
// to use the default location.
func GetCachePath() string {
	if v := os.Getenv("TL_CACHE"); v != "" {
		return v
	}
	cfg, err := Load()
	if err == nil {
		return cfg.Cache
	}
	return ""
}

// parseBoolEnv returns nil if env not set, pointer to bool if set.
func parseBoolEnv(envKey string) *bool {
	v := os.Getenv(envKey)
	if v == "" {
		return nil
	}
	v = strings.ToLower(v)
	if v == "1" || v == "true" {
		b := true
		return &b
	}
	if v == "0" || v == "false" {
		b := false
		return &b
	}
	return nil
}
