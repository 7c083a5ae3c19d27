package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePort validates a TCP port
func (v *Validator) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"trace", "debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateWaitUntil validates the default navigation wait condition
func (v *Validator) ValidateWaitUntil(wait string) error {
	if wait == "" {
		return nil // Use default
	}

	validWaits := []string{"load", "domcontentloaded", "networkidle", "networkidle0", "networkidle2", "commit"}
	for _, valid := range validWaits {
		if strings.EqualFold(wait, valid) {
			return nil
		}
	}
	return fmt.Errorf("invalid wait condition: %s (must be one of: %s)", wait, strings.Join(validWaits, ", "))
}

// ValidateViewport validates the default viewport
func (v *Validator) ValidateViewport(vp ViewportConfig) error {
	if vp.Width == 0 && vp.Height == 0 {
		return nil
	}
	if vp.Width <= 0 || vp.Height <= 0 {
		return fmt.Errorf("viewport width and height must both be positive, got %dx%d", vp.Width, vp.Height)
	}
	return nil
}

// ValidateDomainPattern validates an allow or block list entry
func (v *Validator) ValidateDomainPattern(pattern string) error {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(pattern, "*."), ".")
	if trimmed == "" || strings.ContainsAny(trimmed, "/:* ") {
		return fmt.Errorf("invalid domain pattern %q", pattern)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	// Validate server
	if err := v.ValidatePort(cfg.Server.Port); err != nil {
		errors = append(errors, fmt.Errorf("server: %w", err))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errors = append(errors, fmt.Errorf("server.shutdown_timeout must be >= 0"))
	}
	if cfg.Server.MaxBodyBytes < 0 {
		errors = append(errors, fmt.Errorf("server.max_body_bytes must be >= 0"))
	}

	// Validate defaults
	if err := v.ValidateViewport(cfg.Defaults.Viewport); err != nil {
		errors = append(errors, fmt.Errorf("defaults: %w", err))
	}
	if err := v.ValidateWaitUntil(cfg.Defaults.WaitUntil); err != nil {
		errors = append(errors, fmt.Errorf("defaults: %w", err))
	}
	if cfg.Defaults.NavigationTimeout < 0 {
		errors = append(errors, fmt.Errorf("defaults.navigation_timeout_ms must be >= 0"))
	}
	if cfg.Defaults.SelectorTimeout < 0 {
		errors = append(errors, fmt.Errorf("defaults.selector_timeout_ms must be >= 0"))
	}
	if cfg.Defaults.TextTimeout < 0 {
		errors = append(errors, fmt.Errorf("defaults.text_timeout_ms must be >= 0"))
	}
	if cfg.Defaults.ActionTimeout < 0 {
		errors = append(errors, fmt.Errorf("defaults.action_timeout_ms must be >= 0"))
	}

	// Validate security
	for _, d := range cfg.Security.AllowedDomains {
		if err := v.ValidateDomainPattern(d); err != nil {
			errors = append(errors, fmt.Errorf("security.allowed_domains: %w", err))
		}
	}
	for _, d := range cfg.Security.BlockedDomains {
		if err := v.ValidateDomainPattern(d); err != nil {
			errors = append(errors, fmt.Errorf("security.blocked_domains: %w", err))
		}
	}

	// Validate profiles
	if strings.TrimSpace(cfg.Profiles.Dir) == "" {
		errors = append(errors, fmt.Errorf("profiles.dir is required"))
	}

	// Validate reaper
	if cfg.Reaper.IdleTimeout < 0 {
		errors = append(errors, fmt.Errorf("reaper.idle_timeout must be >= 0"))
	}
	if cfg.Reaper.IdleTimeout > 0 && strings.TrimSpace(cfg.Reaper.Schedule) == "" {
		errors = append(errors, fmt.Errorf("reaper.schedule is required when idle_timeout is set"))
	}

	// Validate logging
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}
	if cfg.Logging.MaxSize < 0 {
		errors = append(errors, fmt.Errorf("logging.max_size must be >= 0"))
	}
	if cfg.Logging.MaxAge < 0 {
		errors = append(errors, fmt.Errorf("logging.max_age must be >= 0"))
	}

	// Validate tracing
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errors = append(errors, fmt.Errorf("tracing.sample_ratio must be between 0 and 1, got %v", cfg.Tracing.SampleRatio))
	}

	return errors
}
