package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variables, e.g. GDC_FETCH_RETRY_SLEEP_TIME
const EnvPrefix = "GDC_FETCH"

// Fatal error policies
const (
	OnFatalAbort    = "abort"
	OnFatalContinue = "continue"
)

// Config represents the entire application configuration
type Config struct {
	Manifest string `mapstructure:"manifest"`
	SaveDir  string `mapstructure:"save_dir"`
	BaseURL  string `mapstructure:"base_url"`

	Retry    RetryConfig    `mapstructure:"retry"`
	Download DownloadConfig `mapstructure:"download"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Progress ProgressConfig `mapstructure:"progress"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// RetryConfig contains retry settings
type RetryConfig struct {
	SleepTime   string `mapstructure:"sleep_time"`   // Wait between attempts; a bare number is seconds
	MaxAttempts int    `mapstructure:"max_attempts"` // 0 = retry forever
}

// DownloadConfig contains transfer settings
type DownloadConfig struct {
	ChunkSize int    `mapstructure:"chunk_size"`
	OnFatal   string `mapstructure:"on_fatal"`
}

// HTTPConfig contains HTTP client settings
type HTTPConfig struct {
	SkipTLSVerify         bool   `mapstructure:"skip_tls_verify"`
	DialTimeout           string `mapstructure:"dial_timeout"`
	ResponseHeaderTimeout string `mapstructure:"response_header_timeout"`
	BufferSizeKB          int    `mapstructure:"buffer_size_kb"`
}

// ProgressConfig contains progress display settings
type ProgressConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Window          string `mapstructure:"window"`
	RefreshInterval string `mapstructure:"refresh_interval"`
	LogInterval     string `mapstructure:"log_interval"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// JournalConfig contains transfer journal settings
type JournalConfig struct {
	Path string `mapstructure:"path"` // Empty disables the journal
}

// MetricsConfig contains metrics export settings
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"` // Empty disables the textfile
}

// LoadOptions selects the sources Load merges
type LoadOptions struct {
	// ConfigFile is an optional YAML file
	ConfigFile string

	// Overrides are applied last, typically from explicitly set CLI flags
	Overrides map[string]any
}

// Load merges defaults, the optional config file, GDC_FETCH_* environment
// variables and overrides, in that order, and validates the result.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("manifest", "gdc_manifest.txt")
	v.SetDefault("save_dir", ".")
	v.SetDefault("base_url", "https://api.gdc.cancer.gov/data/")
	v.SetDefault("retry.sleep_time", "5s")
	v.SetDefault("retry.max_attempts", 0)
	v.SetDefault("download.chunk_size", 32*1024)
	v.SetDefault("download.on_fatal", OnFatalAbort)
	v.SetDefault("http.skip_tls_verify", true)
	v.SetDefault("http.dial_timeout", "30s")
	v.SetDefault("http.response_header_timeout", "60s")
	v.SetDefault("http.buffer_size_kb", 64)
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.window", "1s")
	v.SetDefault("progress.refresh_interval", "200ms")
	v.SetDefault("progress.log_interval", "10s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("journal.path", "")
	v.SetDefault("metrics.textfile", "")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Manifest == "" {
		return fmt.Errorf("manifest is required")
	}
	if c.SaveDir == "" {
		return fmt.Errorf("save_dir is required")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute http(s) URL: %s", c.BaseURL)
	}

	// Validate retry config
	sleep, err := parseDuration(c.Retry.SleepTime)
	if err != nil {
		return fmt.Errorf("invalid retry.sleep_time: %w", err)
	}
	if sleep <= 0 {
		return fmt.Errorf("retry.sleep_time must be positive")
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.max_attempts must not be negative")
	}

	// Validate download config
	if c.Download.ChunkSize <= 0 || c.Download.ChunkSize > 16*1024*1024 {
		return fmt.Errorf("download.chunk_size must be between 1 and 16777216")
	}
	switch c.Download.OnFatal {
	case OnFatalAbort, OnFatalContinue:
	default:
		return fmt.Errorf("invalid download.on_fatal: %s", c.Download.OnFatal)
	}

	durations := map[string]string{
		"http.dial_timeout":            c.HTTP.DialTimeout,
		"http.response_header_timeout": c.HTTP.ResponseHeaderTimeout,
		"progress.window":              c.Progress.Window,
		"progress.refresh_interval":    c.Progress.RefreshInterval,
		"progress.log_interval":        c.Progress.LogInterval,
	}
	for key, value := range durations {
		d, err := parseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}

	// Validate logging config
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "console", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

// parseDuration parses a Go duration; a bare integer is taken as seconds.
// An empty string is zero.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

func durationOr(s string, def time.Duration) time.Duration {
	d, _ := parseDuration(s)
	if d == 0 {
		return def
	}
	return d
}

// GetSleepTime returns the wait between retry attempts
func (c *RetryConfig) GetSleepTime() time.Duration {
	return durationOr(c.SleepTime, 5*time.Second)
}

// GetDialTimeout returns the dial timeout as time.Duration
func (c *HTTPConfig) GetDialTimeout() time.Duration {
	return durationOr(c.DialTimeout, 30*time.Second)
}

// GetResponseHeaderTimeout returns the response header timeout as time.Duration
func (c *HTTPConfig) GetResponseHeaderTimeout() time.Duration {
	return durationOr(c.ResponseHeaderTimeout, 60*time.Second)
}

// GetWindow returns the rate sampling window
func (c *ProgressConfig) GetWindow() time.Duration {
	return durationOr(c.Window, time.Second)
}

// GetRefreshInterval returns the terminal redraw interval
func (c *ProgressConfig) GetRefreshInterval() time.Duration {
	return durationOr(c.RefreshInterval, 200*time.Millisecond)
}

// GetLogInterval returns the non-terminal progress line interval
func (c *ProgressConfig) GetLogInterval() time.Duration {
	return durationOr(c.LogInterval, 10*time.Second)
}

// ContinueOnFatal reports whether a failed task lets the batch go on
func (c *DownloadConfig) ContinueOnFatal() bool {
	return c.OnFatal == OnFatalContinue
}
