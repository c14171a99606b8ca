package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Monitor modes.
const (
	ModePoll   = "poll"
	ModeStream = "stream"
)

// MonitorConfig is the per-source configuration. It is treated as
// immutable once a monitor starts.
type MonitorConfig struct {
	Name            string            `mapstructure:"name" json:"name"`
	URL             string            `mapstructure:"url" json:"url"`
	Mode            string            `mapstructure:"mode" json:"mode"`
	Interval        time.Duration     `mapstructure:"interval" json:"interval"`
	Timeout         time.Duration     `mapstructure:"timeout" json:"timeout"`
	MaxRetries      int               `mapstructure:"max_retries" json:"max_retries"`
	BackoffBase     time.Duration     `mapstructure:"backoff_base" json:"backoff_base"`
	ReconnectDelay  time.Duration     `mapstructure:"reconnect_delay" json:"reconnect_delay"`
	MaxReconnects   int               `mapstructure:"max_reconnects" json:"max_reconnects"`
	ContextLines    int               `mapstructure:"context_lines" json:"context_lines"`
	StacktraceLimit int               `mapstructure:"stacktrace_limit" json:"stacktrace_limit"`
	Method          string            `mapstructure:"method" json:"method"`
	Headers         map[string]string `mapstructure:"headers" json:"headers,omitempty"`
	Body            string            `mapstructure:"body" json:"body,omitempty"`
	Username        string            `mapstructure:"username" json:"username,omitempty"`
	Password        string            `mapstructure:"password" json:"-"`
	LineEnding      string            `mapstructure:"line_ending" json:"line_ending"`
}

// ID returns the identifier used to tag this source's events.
func (c MonitorConfig) ID() string {
	if c.Name != "" {
		return c.Name
	}
	return c.URL
}

// ApplyDefaults fills zero-valued fields with sane defaults.
func (c *MonitorConfig) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = ModePoll
	}
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.MaxReconnects <= 0 {
		c.MaxReconnects = 5
	}
	if c.ContextLines <= 0 {
		c.ContextLines = 50
	}
	if c.StacktraceLimit <= 0 {
		c.StacktraceLimit = 100
	}
	if c.Method == "" {
		c.Method = "GET"
	}
	if c.LineEnding == "" {
		c.LineEnding = "\n"
	}
}

// Validate fails fast on configuration a monitor cannot start with.
func (c *MonitorConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("monitor %q: url is required", c.Name)
	}
	switch c.Mode {
	case ModePoll, ModeStream:
	default:
		return fmt.Errorf("monitor %q: unsupported mode %q (want %q or %q)", c.ID(), c.Mode, ModePoll, ModeStream)
	}
	return nil
}

// OutputConfig configures the sink chain built by the CLI.
type OutputConfig struct {
	Path        string `mapstructure:"path" json:"path"`     // file sink destination, empty disables
	Format      string `mapstructure:"format" json:"format"` // "jsonl" or "jsonarray"
	Console     bool   `mapstructure:"console" json:"console"`
	ShowContext bool   `mapstructure:"show_context" json:"show_context"`
}

// AlertConfig configures the threshold alert sink.
type AlertConfig struct {
	Threshold   int           `mapstructure:"threshold" json:"threshold"` // 0 disables alerting
	Window      time.Duration `mapstructure:"window" json:"window"`
	ResetOnFire bool          `mapstructure:"reset_on_fire" json:"reset_on_fire"`
	WebhookURL  string        `mapstructure:"webhook_url" json:"webhook_url,omitempty"`
}

// FilterConfig configures the purely functional event filters applied
// upstream of the sink chain.
type FilterConfig struct {
	Types       []string `mapstructure:"types" json:"types,omitempty"`
	URLPattern  string   `mapstructure:"url_pattern" json:"url_pattern,omitempty"`
	MinSeverity string   `mapstructure:"min_severity" json:"min_severity,omitempty"`
}

// DashboardConfig configures the optional live web dashboard.
type DashboardConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Port    string `mapstructure:"port" json:"port"`
}

// Config is the whole pipeline configuration.
type Config struct {
	Monitors  []MonitorConfig `mapstructure:"monitors" json:"monitors"`
	Output    OutputConfig    `mapstructure:"output" json:"output"`
	Alert     AlertConfig     `mapstructure:"alert" json:"alert"`
	Filter    FilterConfig    `mapstructure:"filter" json:"filter"`
	Dashboard DashboardConfig `mapstructure:"dashboard" json:"dashboard"`
	Export    string          `mapstructure:"export" json:"export"` // bulk dump path, empty disables
}

// Load reads a YAML config file (plus SNARE_* environment overrides)
// into a validated Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("snare")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Monitors) == 0 {
		return nil, fmt.Errorf("config %s: at least one monitor is required", path)
	}
	for i := range cfg.Monitors {
		cfg.Monitors[i].ApplyDefaults()
		if err := cfg.Monitors[i].Validate(); err != nil {
			return nil, err
		}
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = "jsonl"
	}
	if cfg.Alert.Window <= 0 {
		cfg.Alert.Window = time.Minute
	}
	if cfg.Dashboard.Port == "" {
		cfg.Dashboard.Port = "8088"
	}

	return &cfg, nil
}
