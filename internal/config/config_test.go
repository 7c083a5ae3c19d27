package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxBodyBytes)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "domcontentloaded", cfg.Defaults.WaitUntil)
	assert.Equal(t, 30000, cfg.Defaults.NavigationTimeout)
	assert.Equal(t, 5000, cfg.Defaults.SelectorTimeout)
	assert.Equal(t, 5000, cfg.Defaults.TextTimeout)
	assert.Equal(t, 30000, cfg.Defaults.ActionTimeout)
	assert.False(t, cfg.Security.BlockLocalhost)
	assert.Equal(t, "profiles", cfg.Profiles.Dir)
	assert.Equal(t, 0, cfg.Reaper.IdleTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Tracing.Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestConfigDurations(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.ShutdownGrace())
	assert.Equal(t, time.Duration(0), cfg.IdleTimeout())

	cfg.Reaper.IdleTimeout = 600
	assert.Equal(t, 10*time.Minute, cfg.IdleTimeout())

	assert.Equal(t, 5*time.Second, Millis(5000))
	assert.Equal(t, time.Duration(0), Millis(0))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "port out of range",
			mutate:  func(cfg *Config) { cfg.Server.Port = 70000 },
			wantErr: "server: port must be between 1 and 65535",
		},
		{
			name:    "negative body limit",
			mutate:  func(cfg *Config) { cfg.Server.MaxBodyBytes = -1 },
			wantErr: "server.max_body_bytes",
		},
		{
			name:    "unknown wait condition",
			mutate:  func(cfg *Config) { cfg.Defaults.WaitUntil = "idle" },
			wantErr: "invalid wait condition: idle",
		},
		{
			name:    "half viewport",
			mutate:  func(cfg *Config) { cfg.Defaults.Viewport = ViewportConfig{Width: 800} },
			wantErr: "viewport width and height",
		},
		{
			name:    "negative selector timeout",
			mutate:  func(cfg *Config) { cfg.Defaults.SelectorTimeout = -1 },
			wantErr: "defaults.selector_timeout_ms",
		},
		{
			name:    "negative action timeout",
			mutate:  func(cfg *Config) { cfg.Defaults.ActionTimeout = -5 },
			wantErr: "defaults.action_timeout_ms",
		},
		{
			name:    "bad allowed domain",
			mutate:  func(cfg *Config) { cfg.Security.AllowedDomains = []string{"https://example.com"} },
			wantErr: "security.allowed_domains",
		},
		{
			name:    "bad blocked domain",
			mutate:  func(cfg *Config) { cfg.Security.BlockedDomains = []string{"*."} },
			wantErr: "security.blocked_domains",
		},
		{
			name:    "missing profiles dir",
			mutate:  func(cfg *Config) { cfg.Profiles.Dir = " " },
			wantErr: "profiles.dir is required",
		},
		{
			name: "reaper without schedule",
			mutate: func(cfg *Config) {
				cfg.Reaper.IdleTimeout = 60
				cfg.Reaper.Schedule = ""
			},
			wantErr: "reaper.schedule is required",
		},
		{
			name:    "bad log level",
			mutate:  func(cfg *Config) { cfg.Logging.Level = "verbose" },
			wantErr: "invalid log level: verbose",
		},
		{
			name:    "sample ratio above one",
			mutate:  func(cfg *Config) { cfg.Tracing.SampleRatio = 1.5 },
			wantErr: "tracing.sample_ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, strings.Split(err.Error(), "\n"), 2)
}

func TestConfigString(t *testing.T) {
	s := DefaultConfig().String()
	assert.Contains(t, s, `"wait_until": "domcontentloaded"`)
	assert.Contains(t, s, `"port": 3000`)
}
