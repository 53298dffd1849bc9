package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Inventory  string           `mapstructure:"inventory"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Workflow   WorkflowConfig   `mapstructure:"workflow"`
	Relocation ConvergeConfig   `mapstructure:"relocation"`
	Membership ConvergeConfig   `mapstructure:"membership"`
	Watch      WatchConfig      `mapstructure:"watch"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// GatewayConfig points at the fleet's admin gateway.
type GatewayConfig struct {
	Address string        `mapstructure:"address"` // base URL, e.g. https://admin.fleet.internal:8443
	Timeout time.Duration `mapstructure:"timeout"` // per-request timeout
}

// ConvergeConfig bounds one class of convergence wait. The effective
// timeout is Interval x MaxRetries; the budget is counted in retries to
// stay deterministic under clock skew.
type ConvergeConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// WorkflowConfig holds engine-wide settings.
type WorkflowConfig struct {
	Converge  ConvergeConfig `mapstructure:"converge"`  // default step budget
	Requester string         `mapstructure:"requester"` // attribution tag on component mutations
}

// WatchConfig drives the read-only dashboard loop.
type WatchConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	MetricsAddr  string        `mapstructure:"metrics_addr"`
	ProbePort    int           `mapstructure:"probe_port"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Inventory == "" {
		return fmt.Errorf("inventory path is required")
	}
	for name, cc := range map[string]ConvergeConfig{
		"workflow.converge": c.Workflow.Converge,
		"relocation":        c.Relocation,
		"membership":        c.Membership,
	} {
		if cc.Interval <= 0 {
			return fmt.Errorf("%s.interval must be positive", name)
		}
		if cc.MaxRetries < 0 {
			return fmt.Errorf("%s.max_retries must not be negative", name)
		}
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be positive")
	}
	return nil
}
