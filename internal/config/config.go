// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Scraper ScraperConfig `mapstructure:"scraper"`
	Proxy   ProxyConfig   `mapstructure:"proxy"`
	Markers MarkerConfig  `mapstructure:"markers"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ScraperConfig governs the acquisition pipeline.
type ScraperConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	RankingPath      string `mapstructure:"ranking_path"`
	UserAgent        string `mapstructure:"user_agent"`
	Limit            int    `mapstructure:"limit"`
	TriggerLimit     int    `mapstructure:"trigger_limit"`
	DelaySeconds     int    `mapstructure:"delay_seconds"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	RunBudgetSeconds int    `mapstructure:"run_budget_seconds"`
	FreshForHours    int    `mapstructure:"fresh_for_hours"`
	Version          string `mapstructure:"version"`
}

// ProxyConfig controls proxy pool loading and the retry ladder.
type ProxyConfig struct {
	Enabled        bool              `mapstructure:"enabled"`
	UseForRanking  bool              `mapstructure:"use_for_ranking"`
	Sources        map[string]string `mapstructure:"sources"`
	PerSourceCap   int               `mapstructure:"per_source_cap"`
	PoolSize       int               `mapstructure:"pool_size"`
	MaxAttempts    int               `mapstructure:"max_attempts"`
	TimeoutSeconds int               `mapstructure:"timeout_seconds"`
}

// MarkerConfig holds the literal labels the extractors match against. The
// catalog site's markup is undocumented, so these are kept out of code.
type MarkerConfig struct {
	RankingHeader    string `mapstructure:"ranking_header"`
	CategoryLabel    string `mapstructure:"category_label"`
	ReleaseDateLabel string `mapstructure:"release_date_label"`
	PopularityPhrase string `mapstructure:"popularity_phrase"`
	RatingLabel      string `mapstructure:"rating_label"`
}

// StorageConfig sets where snapshots are written.
type StorageConfig struct {
	SnapshotPath string `mapstructure:"snapshot_path"`
	GCSBucket    string `mapstructure:"gcs_bucket"`
	GCSObject    string `mapstructure:"gcs_object"`
}

// DBConfig controls the optional snapshot history archive.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for snapshot notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DISTRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("scraper.base_url", "https://distrowatch.com")
	v.SetDefault("scraper.ranking_path", "/dwres.php?resource=popularity")
	v.SetDefault("scraper.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("scraper.limit", 100)
	v.SetDefault("scraper.trigger_limit", 230)
	v.SetDefault("scraper.delay_seconds", 2)
	v.SetDefault("scraper.timeout_seconds", 30)
	v.SetDefault("scraper.run_budget_seconds", 0)
	v.SetDefault("scraper.fresh_for_hours", 24)
	v.SetDefault("scraper.version", "3.0.0")
	v.SetDefault("proxy.enabled", false)
	v.SetDefault("proxy.use_for_ranking", true)
	v.SetDefault("proxy.sources", map[string]string{
		"http":   "https://raw.githubusercontent.com/TheSpeedX/SOCKS-List/master/http.txt",
		"socks4": "https://raw.githubusercontent.com/TheSpeedX/SOCKS-List/master/socks4.txt",
		"socks5": "https://raw.githubusercontent.com/TheSpeedX/SOCKS-List/master/socks5.txt",
	})
	v.SetDefault("proxy.per_source_cap", 50)
	v.SetDefault("proxy.pool_size", 30)
	v.SetDefault("proxy.max_attempts", 5)
	v.SetDefault("proxy.timeout_seconds", 8)
	v.SetDefault("markers.ranking_header", "Last 1 month")
	v.SetDefault("markers.category_label", "Category")
	v.SetDefault("markers.release_date_label", "Release Date")
	v.SetDefault("markers.popularity_phrase", "4 weeks")
	v.SetDefault("markers.rating_label", "Average visitor rating")
	v.SetDefault("storage.snapshot_path", "data/cache/distros_scraped.json")
	v.SetDefault("storage.gcs_object", "distros_scraped.json")
	v.SetDefault("db.table", "distro_snapshots")
	v.SetDefault("db.max_conns", 4)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if u, err := url.Parse(c.Scraper.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("scraper.base_url must be an absolute URL")
	}
	if c.Scraper.Limit <= 0 {
		return fmt.Errorf("scraper.limit must be > 0")
	}
	if c.Scraper.DelaySeconds < 0 {
		return fmt.Errorf("scraper.delay_seconds must be >= 0")
	}
	if c.Scraper.TimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.timeout_seconds must be > 0")
	}
	if c.Scraper.RunBudgetSeconds < 0 {
		return fmt.Errorf("scraper.run_budget_seconds must be >= 0")
	}
	if strings.TrimSpace(c.Storage.SnapshotPath) == "" {
		return fmt.Errorf("storage.snapshot_path is required")
	}
	if c.Proxy.Enabled {
		if c.Proxy.PoolSize <= 0 || c.Proxy.PerSourceCap <= 0 || c.Proxy.MaxAttempts <= 0 {
			return fmt.Errorf("proxy.pool_size, proxy.per_source_cap and proxy.max_attempts must be > 0 when proxies are enabled")
		}
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// RankingURL joins the base URL and ranking path.
func (c Config) RankingURL() string {
	return strings.TrimRight(c.Scraper.BaseURL, "/") + "/" + strings.TrimLeft(c.Scraper.RankingPath, "/")
}

// Delay is the fixed wait between detail requests.
func (c Config) Delay() time.Duration {
	return time.Duration(c.Scraper.DelaySeconds) * time.Second
}

// RequestTimeout bounds one direct request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Scraper.TimeoutSeconds) * time.Second
}

// ProxyTimeout bounds one proxied request.
func (c Config) ProxyTimeout() time.Duration {
	return time.Duration(c.Proxy.TimeoutSeconds) * time.Second
}

// RunBudget is the wall-clock budget for one run; zero means unbounded.
func (c Config) RunBudget() time.Duration {
	return time.Duration(c.Scraper.RunBudgetSeconds) * time.Second
}

// FreshFor is how long a snapshot suppresses non-forced triggers.
func (c Config) FreshFor() time.Duration {
	return time.Duration(c.Scraper.FreshForHours) * time.Hour
}
