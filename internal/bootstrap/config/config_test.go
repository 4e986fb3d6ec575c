package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadReadsFileAndDefaults(t *testing.T) {
	path := writeConfigFile(t, `
app:
  name: almsync
  env: test
database:
  dsn: /tmp/warehouse.sqlite
tracker:
  base_url: https://tracker.example.com
  project_key: HEALTH
http:
  webhook_secret: s3cret
`)

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.Env != "test" {
		t.Fatalf("app.env = %q", cfg.App.Env)
	}
	if cfg.Tracker.BaseURL != "https://tracker.example.com" {
		t.Fatalf("tracker.base_url = %q", cfg.Tracker.BaseURL)
	}
	if cfg.HTTP.WebhookSecret != "s3cret" {
		t.Fatalf("http.webhook_secret = %q", cfg.HTTP.WebhookSecret)
	}

	// Unset values come from the defaults.
	if cfg.Tracker.ResyncJQL != "project = HEALTH" {
		t.Fatalf("tracker.resync_jql = %q", cfg.Tracker.ResyncJQL)
	}
	if cfg.Bus.Stream != "ALMSYNC" {
		t.Fatalf("bus.stream = %q", cfg.Bus.Stream)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("http.addr = %q", cfg.HTTP.Addr)
	}
}

func TestLoadRejectsMissingDSN(t *testing.T) {
	path := writeConfigFile(t, `
database:
  dsn: ""
tracker:
  project_key: HEALTH
`)

	if _, err := Load(context.Background(), path); err == nil {
		t.Fatal("Load() accepted config without database dsn")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
database:
  dsn: /tmp/warehouse.sqlite
tracker:
  project_key: HEALTH
`)
	t.Setenv("ALMSYNC_TRACKER_PROJECT_KEY", "CARDIO")

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Tracker.ProjectKey != "CARDIO" {
		t.Fatalf("tracker.project_key = %q, want env override", cfg.Tracker.ProjectKey)
	}
}

func TestTimeoutDefaults(t *testing.T) {
	if got := (TrackerConfig{}).Timeout(); got != 15*time.Second {
		t.Fatalf("tracker timeout = %v", got)
	}
	if got := (TrackerConfig{TimeoutSeconds: 3}).Timeout(); got != 3*time.Second {
		t.Fatalf("tracker timeout = %v", got)
	}
	if got := (BusConfig{}).Timeout(); got != 30*time.Second {
		t.Fatalf("bus timeout = %v", got)
	}
}
