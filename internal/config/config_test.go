package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Scraper.Limit != 100 || cfg.Scraper.DelaySeconds != 2 {
		t.Fatalf("unexpected scraper defaults: %+v", cfg.Scraper)
	}
	if cfg.Proxy.Enabled {
		t.Fatal("expected proxies disabled by default")
	}
	if len(cfg.Proxy.Sources) != 3 {
		t.Fatalf("expected three default proxy sources, got %v", cfg.Proxy.Sources)
	}
	if cfg.Markers.PopularityPhrase != "4 weeks" {
		t.Fatalf("unexpected popularity phrase %q", cfg.Markers.PopularityPhrase)
	}
	if got := cfg.RankingURL(); got != "https://distrowatch.com/dwres.php?resource=popularity" {
		t.Fatalf("unexpected ranking url %q", got)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
logging:
  development: false
scraper:
  base_url: https://mirror.example.org/
  ranking_path: popularity
  limit: 25
  delay_seconds: 5
  timeout_seconds: 12
  run_budget_seconds: 600
  fresh_for_hours: 6
proxy:
  enabled: true
  sources:
    socks5: https://lists.example.org/socks5.txt
  per_source_cap: 10
  pool_size: 5
  max_attempts: 3
  timeout_seconds: 4
markers:
  popularity_phrase: 4 semanas
storage:
  snapshot_path: /tmp/snap.json
  gcs_bucket: bucket
db:
  dsn: postgres://localhost/distros
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Logging.Development {
		t.Fatalf("expected server/logging overrides, got %+v %+v", cfg.Server, cfg.Logging)
	}
	if got := cfg.RankingURL(); got != "https://mirror.example.org/popularity" {
		t.Fatalf("unexpected ranking url %q", got)
	}
	if cfg.Delay() != 5*time.Second || cfg.RequestTimeout() != 12*time.Second {
		t.Fatalf("unexpected durations: delay=%v timeout=%v", cfg.Delay(), cfg.RequestTimeout())
	}
	if cfg.RunBudget() != 10*time.Minute || cfg.FreshFor() != 6*time.Hour {
		t.Fatalf("unexpected budget/freshness: %v %v", cfg.RunBudget(), cfg.FreshFor())
	}
	if !cfg.Proxy.Enabled || cfg.Proxy.Sources["socks5"] != "https://lists.example.org/socks5.txt" {
		t.Fatalf("expected proxy overrides, got %+v", cfg.Proxy)
	}
	if cfg.ProxyTimeout() != 4*time.Second {
		t.Fatalf("unexpected proxy timeout %v", cfg.ProxyTimeout())
	}
	if cfg.Markers.PopularityPhrase != "4 semanas" || cfg.Markers.CategoryLabel != "Category" {
		t.Fatalf("expected marker override merged with defaults, got %+v", cfg.Markers)
	}
	if cfg.DB.Table != "distro_snapshots" {
		t.Fatalf("expected default table, got %q", cfg.DB.Table)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:  ServerConfig{Port: 8080},
		Scraper: ScraperConfig{BaseURL: "https://distrowatch.com", Limit: 10, TimeoutSeconds: 10},
		Storage: StorageConfig{SnapshotPath: "data/snap.json"},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "relative base url",
			cfg: func() Config {
				c := base
				c.Scraper.BaseURL = "distrowatch.com"
				return c
			}(),
			want: "scraper.base_url",
		},
		{
			name: "invalid limit",
			cfg: func() Config {
				c := base
				c.Scraper.Limit = 0
				return c
			}(),
			want: "scraper.limit",
		},
		{
			name: "negative delay",
			cfg: func() Config {
				c := base
				c.Scraper.DelaySeconds = -1
				return c
			}(),
			want: "scraper.delay_seconds",
		},
		{
			name: "missing snapshot path",
			cfg: func() Config {
				c := base
				c.Storage.SnapshotPath = " "
				return c
			}(),
			want: "storage.snapshot_path",
		},
		{
			name: "proxy pool size",
			cfg: func() Config {
				c := base
				c.Proxy.Enabled = true
				return c
			}(),
			want: "proxy.pool_size",
		},
		{
			name: "pubsub without project",
			cfg: func() Config {
				c := base
				c.PubSub.TopicName = "snapshots"
				return c
			}(),
			want: "pubsub.project_id",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
