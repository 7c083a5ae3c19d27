package config

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"time"
)

// Config represents the browserd configuration
type Config struct {
	// HTTP server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Browser launch settings shared by every session
	Browser BrowserConfig `json:"browser" mapstructure:"browser"`

	// Per-session context and operation defaults
	Defaults DefaultsConfig `json:"defaults" mapstructure:"defaults"`

	// Navigation policy
	Security SecurityConfig `json:"security" mapstructure:"security"`

	// Profile storage
	Profiles ProfilesConfig `json:"profiles" mapstructure:"profiles"`

	// Idle session reaper
	Reaper ReaperConfig `json:"reaper" mapstructure:"reaper"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Prometheus metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// OpenTelemetry tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string `json:"host" mapstructure:"host"`
	Port            int    `json:"port" mapstructure:"port"`
	ShutdownTimeout int    `json:"shutdown_timeout" mapstructure:"shutdown_timeout"` // seconds
	MaxBodyBytes    int64  `json:"max_body_bytes" mapstructure:"max_body_bytes"`
	PIDFile         string `json:"pid_file" mapstructure:"pid_file"` // empty disables
}

// BrowserConfig holds Chrome launch settings
type BrowserConfig struct {
	Headless   bool     `json:"headless" mapstructure:"headless"`
	NoSandbox  bool     `json:"no_sandbox" mapstructure:"no_sandbox"`
	ChromePath string   `json:"chrome_path" mapstructure:"chrome_path"`
	Args       []string `json:"args" mapstructure:"args"`
}

// DefaultsConfig holds the context options and timeouts used when a request
// does not supply its own
type DefaultsConfig struct {
	UserAgent         string         `json:"user_agent" mapstructure:"user_agent"`
	Viewport          ViewportConfig `json:"viewport" mapstructure:"viewport"`
	WaitUntil         string         `json:"wait_until" mapstructure:"wait_until"`
	NavigationTimeout int            `json:"navigation_timeout_ms" mapstructure:"navigation_timeout_ms"`
	SelectorTimeout   int            `json:"selector_timeout_ms" mapstructure:"selector_timeout_ms"`
	TextTimeout       int            `json:"text_timeout_ms" mapstructure:"text_timeout_ms"`
	// ActionTimeout bounds click, type and text lookups themselves
	ActionTimeout     int            `json:"action_timeout_ms" mapstructure:"action_timeout_ms"`
}

// ViewportConfig is the default page size, zero leaves Chrome's default
type ViewportConfig struct {
	Width  int `json:"width" mapstructure:"width"`
	Height int `json:"height" mapstructure:"height"`
}

// SecurityConfig holds the navigation policy
type SecurityConfig struct {
	AllowedDomains []string `json:"allowed_domains" mapstructure:"allowed_domains"`
	BlockedDomains []string `json:"blocked_domains" mapstructure:"blocked_domains"`
	BlockLocalhost bool     `json:"block_localhost" mapstructure:"block_localhost"`
	AuditLog       string   `json:"audit_log" mapstructure:"audit_log"`
}

// ProfilesConfig locates profile directories and the profile catalog
type ProfilesConfig struct {
	Dir     string `json:"dir" mapstructure:"dir"`
	Catalog string `json:"catalog" mapstructure:"catalog"` // empty disables the catalog
}

// ReaperConfig controls idle session cleanup
type ReaperConfig struct {
	IdleTimeout int    `json:"idle_timeout" mapstructure:"idle_timeout"` // seconds, 0 disables
	Schedule    string `json:"schedule" mapstructure:"schedule"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig toggles the /metrics endpoint
type MetricsConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			ShutdownTimeout: 30,
			MaxBodyBytes:    10 << 20,
			PIDFile:         "browserd.pid",
		},
		Browser: BrowserConfig{
			Headless: true,
			Args:     []string{},
		},
		Defaults: DefaultsConfig{
			WaitUntil:         "domcontentloaded",
			NavigationTimeout: 30000,
			SelectorTimeout:   5000,
			TextTimeout:       5000,
			ActionTimeout:     30000,
		},
		Security: SecurityConfig{
			AllowedDomains: []string{},
			BlockedDomains: []string{},
		},
		Profiles: ProfilesConfig{
			Dir:     "profiles",
			Catalog: filepath.Join("profiles", ".catalog.db"),
		},
		Reaper: ReaperConfig{
			IdleTimeout: 0,
			Schedule:    "@every 1m",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "browserd",
			SampleRatio: 1.0,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return errors.Join(NewValidator().ValidateConfig(c)...)
}

// ShutdownGrace returns the HTTP shutdown grace period
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Server.ShutdownTimeout) * time.Second
}

// IdleTimeout returns the reaper idle timeout, zero when reaping is off
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Reaper.IdleTimeout) * time.Second
}

// Millis converts a millisecond setting to a duration
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
