// Package config loads Fleetmaint configuration from file and environment.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/fleetmaint")
	}

	setDefaults(v)

	// Enable environment variable overrides
	v.SetEnvPrefix("FLEETMAINT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; use defaults
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("inventory", "fleet.yaml")

	v.SetDefault("gateway.address", "http://localhost:8710")
	v.SetDefault("gateway.timeout", "15s")

	// Ordinary steps converge within a minute; copy relocation gets a much
	// larger budget because seeding-heavy moves are slow.
	v.SetDefault("workflow.converge.interval", "5s")
	v.SetDefault("workflow.converge.max_retries", 12)
	v.SetDefault("workflow.requester", "fleetmaint")

	v.SetDefault("relocation.interval", "10s")
	v.SetDefault("relocation.max_retries", 90)

	v.SetDefault("membership.interval", "5s")
	v.SetDefault("membership.max_retries", 24)

	v.SetDefault("watch.interval", "10s")
	v.SetDefault("watch.metrics_addr", ":9810")
	v.SetDefault("watch.probe_port", 8710)
	v.SetDefault("watch.probe_timeout", "5s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
