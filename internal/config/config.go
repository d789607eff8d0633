// Package config loads and validates sitelogo configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix scopes environment overrides, e.g. SITELOGO_OUTPUT_DIR.
const EnvPrefix = "SITELOGO"

// Storage backends.
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Config captures every knob loaded via Viper.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Dataset DatasetConfig `mapstructure:"dataset"`
	Output  OutputConfig  `mapstructure:"output"`
	Storage StorageConfig `mapstructure:"storage"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Icon    IconConfig    `mapstructure:"icon"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Notify  NotifyConfig  `mapstructure:"notify"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// DatasetConfig locates the site directory.
type DatasetConfig struct {
	Path string `mapstructure:"path"`
	// Variable is the exported name in .js datasets.
	Variable     string `mapstructure:"variable"`
	ProxySegment string `mapstructure:"proxy_segment"`
}

// OutputConfig names where icons land and how files are named.
type OutputConfig struct {
	Dir       string `mapstructure:"dir"`
	Extension string `mapstructure:"extension"`
}

// StorageConfig selects the sink backend.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// HTTPConfig configures the shared HTTP client.
type HTTPConfig struct {
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	UserAgent        string `mapstructure:"user_agent"`
	Accept           string `mapstructure:"accept"`
	MaxConnsPerHost  int    `mapstructure:"max_conns_per_host"`
	MaxIdleConns     int    `mapstructure:"max_idle_conns"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
}

// IconConfig holds candidate validation and conversion rules.
type IconConfig struct {
	MinBytes  int      `mapstructure:"min_bytes"`
	Size      int      `mapstructure:"size"`
	IconTypes []string `mapstructure:"icon_types"`
	PNGTypes  []string `mapstructure:"png_types"`
	Rels      []string `mapstructure:"rels"`
}

// MetricsConfig controls the end-of-run textfile export.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// NotifyConfig enables the Pub/Sub completion message.
type NotifyConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Enabled reports whether a notification topic is configured.
func (n NotifyConfig) Enabled() bool {
	return n.Topic != ""
}

// Load builds a Config from defaults, an optional file, and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
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
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("dataset.path", "src/mock/mock_data.js")
	v.SetDefault("dataset.variable", "mockData")
	v.SetDefault("dataset.proxy_segment", "/favicon/")
	v.SetDefault("output.dir", "public/sitelogo")
	v.SetDefault("output.extension", ".ico")
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	v.SetDefault("http.accept", "image/webp,image/apng,image/*,*/*;q=0.8")
	v.SetDefault("http.max_conns_per_host", 10)
	v.SetDefault("http.max_idle_conns", 5)
	v.SetDefault("http.max_retries", 0)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 2000)
	v.SetDefault("icon.min_bytes", 100)
	v.SetDefault("icon.size", 32)
	v.SetDefault("icon.icon_types", []string{"image/x-icon", "image/vnd.microsoft.icon"})
	v.SetDefault("icon.png_types", []string{"image/png"})
	v.SetDefault("icon.rels", []string{"icon", "shortcut icon", "apple-touch-icon"})
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("notify.project_id", "")
	v.SetDefault("notify.topic", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Dataset.Path) == "" {
		return fmt.Errorf("dataset.path is required")
	}
	if !strings.HasPrefix(c.Dataset.ProxySegment, "/") || !strings.HasSuffix(c.Dataset.ProxySegment, "/") {
		return fmt.Errorf("dataset.proxy_segment must start and end with '/'")
	}
	if !strings.HasPrefix(c.Output.Extension, ".") {
		return fmt.Errorf("output.extension must start with '.'")
	}
	switch c.Storage.Backend {
	case BackendLocal:
		if strings.TrimSpace(c.Output.Dir) == "" {
			return fmt.Errorf("output.dir is required for the local backend")
		}
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage.backend must be one of local, gcs, memory; got %q", c.Storage.Backend)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxConnsPerHost <= 0 || c.HTTP.MaxIdleConns <= 0 {
		return fmt.Errorf("http.max_conns_per_host and http.max_idle_conns must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.Icon.MinBytes < 0 {
		return fmt.Errorf("icon.min_bytes must be >= 0")
	}
	if c.Icon.Size <= 0 || c.Icon.Size > 256 {
		return fmt.Errorf("icon.size must be between 1 and 256")
	}
	if len(c.Icon.IconTypes) == 0 || len(c.Icon.PNGTypes) == 0 || len(c.Icon.Rels) == 0 {
		return fmt.Errorf("icon.icon_types, icon.png_types and icon.rels must not be empty")
	}
	if c.Notify.Enabled() && c.Notify.ProjectID == "" {
		return fmt.Errorf("notify.project_id must be set when notify.topic is set")
	}
	return nil
}

// RequestTimeout returns the per-request timeout.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffInitial returns the first retry delay.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}

// BackoffMax returns the retry delay ceiling.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}
