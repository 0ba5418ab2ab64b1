package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/marcus/tl/internal/config"
)

func findCommand(t *testing.T, name string) bool {
	t.Helper()
	for _, c := range rootCmd.Commands() {
		if c.Name() == name {
			return true
		}
	}
	return false
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"watch", "status", "refresh", "init", "config"} {
		if !findCommand(t, name) {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestGlobalFlags(t *testing.T) {
	if rootCmd.PersistentFlags().Lookup("log-level") == nil {
		t.Error("missing --log-level flag")
	}
	if rootCmd.PersistentFlags().Lookup("log-format") == nil {
		t.Error("missing --log-format flag")
	}
}

func runCommand(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	return rootCmd.Execute()
}

func TestConfigCommandRuns(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if err := runCommand(t, "config", "--json"); err != nil {
		t.Fatalf("config --json: %v", err)
	}
}

func TestConfigSetGetRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := runCommand(t, "config", "set", "server_url", "http://backend:9090"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.URL != "http://backend:9090" {
		t.Errorf("server url: got %q, want http://backend:9090", cfg.Server.URL)
	}

	if err := runCommand(t, "config", "get", "server_url"); err != nil {
		t.Errorf("config get: %v", err)
	}
}

func TestConfigSetRejectsBadValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := runCommand(t, "config", "set", "fetch_limit", "zero"); err == nil {
		t.Error("bad fetch_limit should fail")
	}
	if err := runCommand(t, "config", "set", "health_interval", "soon"); err == nil {
		t.Error("bad health_interval should fail")
	}
	if err := runCommand(t, "config", "set", "nope", "x"); err == nil {
		t.Error("unknown key should fail")
	}
}

func TestStatusAgainstBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TL_SERVER_URL", srv.URL)
	t.Setenv("TL_CACHE", filepath.Join(home, "cache.db"))

	if err := runCommand(t, "status", "--json"); err != nil {
		t.Fatalf("status --json: %v", err)
	}
}

func TestRefreshPopulatesCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/activities/recent":
			json.NewEncoder(w).Encode(map[string]any{
				"activities": []map[string]any{
					{
						"id":        "act-1",
						"title":     "Synced entry",
						"startTime": int64(1787904000000),
						"endTime":   int64(1787905800000),
						"version":   int64(9),
					},
				},
			})
		case "/v1/activities/incremental":
			json.NewEncoder(w).Encode(map[string]any{"activities": []any{}, "count": 0, "maxVersion": 0})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TL_SERVER_URL", srv.URL)
	t.Setenv("TL_CACHE", filepath.Join(home, "cache.db"))

	if err := runCommand(t, "refresh"); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// Second status run should see the cached activity.
	if err := runCommand(t, "status", "--json"); err != nil {
		t.Fatalf("status after refresh: %v", err)
	}
}
