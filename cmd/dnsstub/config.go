// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bassosimone/dnsstub"
)

// Config holds the forwarder configuration.
type Config struct {
	// Listen is the UDP address to receive queries on.
	Listen string `yaml:"listen"`

	// Resolver is the upstream resolver address. Empty means answering
	// every query locally with the stub address.
	Resolver string `yaml:"resolver"`

	PendingTTL    time.Duration `yaml:"pending_ttl"`
	MaxPending    int           `yaml:"max_pending"`
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// MetricsAddr is the OPTIONAL address serving /metrics.
	MetricsAddr string `yaml:"metrics_addr"`

	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns a config with default values.
func DefaultConfig() *Config {
	return &Config{
		Listen:        "127.0.0.1:2053",
		Resolver:      "",
		PendingTTL:    dnsstub.DefaultPendingTTL,
		MaxPending:    dnsstub.DefaultMaxPending,
		SweepInterval: dnsstub.DefaultSweepInterval,
		MetricsAddr:   "",
		LogLevel:      "info",
	}
}

// LoadConfigFile overrides the fields of cfg set in the given YAML file.
func LoadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// Validate returns an error if the config cannot be used.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("config: listen address is required")
	}
	if c.PendingTTL <= 0 {
		return fmt.Errorf("config: pending TTL must be positive, got %s", c.PendingTTL)
	}
	if c.MaxPending <= 0 {
		return fmt.Errorf("config: max pending must be positive, got %d", c.MaxPending)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("config: sweep interval must be positive, got %s", c.SweepInterval)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// resolveConfig builds the effective config: defaults, then the config
// file if any, then the flags explicitly set on the command line.
func resolveConfig(cmd *cobra.Command, path string, flagValues *Config) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := LoadConfigFile(path, cfg); err != nil {
			return nil, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Listen = flagValues.Listen
	}
	if flags.Changed("resolver") {
		cfg.Resolver = flagValues.Resolver
	}
	if flags.Changed("pending-ttl") {
		cfg.PendingTTL = flagValues.PendingTTL
	}
	if flags.Changed("max-pending") {
		cfg.MaxPending = flagValues.MaxPending
	}
	if flags.Changed("sweep-interval") {
		cfg.SweepInterval = flagValues.SweepInterval
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = flagValues.MetricsAddr
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagValues.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
