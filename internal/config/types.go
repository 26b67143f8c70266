// Package config provides configuration loading for enrichd.
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/enrichd/internal/budget"
)

// Config is the full enrichd configuration.
type Config struct {
	Logging      LoggingConfig      `koanf:"logging"`
	MockMode     bool               `koanf:"mock_mode"`
	Dependencies DependenciesConfig `koanf:"dependencies"`
	Budget       budget.Config      `koanf:"budget"`
	SlotCostUSD  float64            `koanf:"slot_cost_usd"`
	Throttle     ThrottleConfig     `koanf:"throttle"`
	KillSwitches KillSwitchConfig   `koanf:"kill_switches"`
	Retry        RetryConfig        `koanf:"retry"`
	Failure      FailureConfig      `koanf:"failure"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json or console
}

// DependenciesConfig toggles dependency-graph enforcement.
type DependenciesConfig struct {
	Enforce bool `koanf:"enforce"`
}

// StageThrottle paces one pipeline stage.
type StageThrottle struct {
	RequestsPerMinute int           `koanf:"requests_per_minute"`
	MaxConcurrent     int           `koanf:"max_concurrent"`
	Delay             time.Duration `koanf:"delay"`
}

// ThrottleConfig holds per-stage pacing. Stage keys match the pipeline stage
// names.
type ThrottleConfig struct {
	Default StageThrottle            `koanf:"default"`
	Stages  map[string]StageThrottle `koanf:"stages"`
}

// For returns the throttle for a stage, falling back to the default.
func (t ThrottleConfig) For(stage string) StageThrottle {
	if s, ok := t.Stages[stage]; ok {
		return s
	}
	return t.Default
}

// KillSwitchConfig seeds kill switches at startup.
type KillSwitchConfig struct {
	Agents []string `koanf:"agents"`
	Stages []string `koanf:"stages"`
}

// RetryConfig configures the inline retry executor.
type RetryConfig struct {
	Retries            int           `koanf:"retries"`
	Delay              time.Duration `koanf:"delay"`
	MaxDelay           time.Duration `koanf:"max_delay"`
	ExponentialBackoff bool          `koanf:"exponential_backoff"`
	RespectRetryable   bool          `koanf:"respect_retryable"`
}

// FailureConfig configures failure routing.
type FailureConfig struct {
	// AttemptCeiling is the occurrence count past which a temporary failure
	// becomes permanent.
	AttemptCeiling int `koanf:"attempt_ceiling"`
}

// applyDefaults fills unset fields with production defaults.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.SlotCostUSD == 0 {
		cfg.SlotCostUSD = 0.10
	}
	if cfg.Throttle.Default.RequestsPerMinute == 0 {
		cfg.Throttle.Default.RequestsPerMinute = 60
	}
	if cfg.Throttle.Default.MaxConcurrent == 0 {
		cfg.Throttle.Default.MaxConcurrent = 4
	}
	if cfg.Retry.Retries == 0 {
		cfg.Retry.Retries = 2
	}
	if cfg.Retry.Delay == 0 {
		cfg.Retry.Delay = time.Second
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 30 * time.Second
	}
	if cfg.Failure.AttemptCeiling == 0 {
		cfg.Failure.AttemptCeiling = 2
	}
	cfg.Budget.ApplyDefaults()
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format %q", c.Logging.Format)
	}
	if c.SlotCostUSD < 0 {
		return fmt.Errorf("slot_cost_usd must not be negative")
	}
	if c.Retry.Retries < 0 {
		return fmt.Errorf("retry retries must not be negative")
	}
	if c.Failure.AttemptCeiling < 0 {
		return fmt.Errorf("failure attempt_ceiling must not be negative")
	}
	for stage, throttle := range c.Throttle.Stages {
		if throttle.RequestsPerMinute < 0 || throttle.MaxConcurrent < 0 {
			return fmt.Errorf("invalid throttle for stage %q", stage)
		}
	}
	return nil
}
