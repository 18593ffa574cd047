package config

import (
	"time"
)

// Config represents the main Higate configuration
type Config struct {
	// Higress console connection
	Higress HigressConfig `json:"higress" mapstructure:"higress"`

	// Confirmation gate
	Confirm ConfirmConfig `json:"confirm" mapstructure:"confirm"`

	// Invocation/ticket store
	Store StoreConfig `json:"store" mapstructure:"store"`

	// Gateway (WebSocket JSON-RPC surface)
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Metrics endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// HigressConfig holds downstream console connection settings
type HigressConfig struct {
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	// Username/Password are exchanged for a session cookie at startup.
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	// SessionCookie is a pre-issued _hi_sess value; when set, no login is
	// performed.
	SessionCookie  string `json:"session_cookie" mapstructure:"session_cookie"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// ConfirmConfig holds confirmation gate settings
type ConfirmConfig struct {
	DeadlineSeconds int  `json:"deadline_seconds" mapstructure:"deadline_seconds"`
	CLIPrompt       bool `json:"cli_prompt" mapstructure:"cli_prompt"`
}

// StoreConfig holds invocation/ticket store settings
type StoreConfig struct {
	RetentionMinutes int    `json:"retention_minutes" mapstructure:"retention_minutes"`
	MaxEntries       int    `json:"max_entries" mapstructure:"max_entries"`
	ArchivePath      string `json:"archive_path" mapstructure:"archive_path"`
	SweepSchedule    string `json:"sweep_schedule" mapstructure:"sweep_schedule"`
}

// GatewayConfig holds gateway server settings
type GatewayConfig struct {
	Enabled      bool   `json:"enabled" mapstructure:"enabled"`
	Port         int    `json:"port" mapstructure:"port"`
	SharedSecret string `json:"shared_secret" mapstructure:"shared_secret"`
}

// MetricsConfig holds metrics endpoint settings
type MetricsConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	Port    int  `json:"port" mapstructure:"port"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// TracingConfig holds trace sampling settings
type TracingConfig struct {
	// SampleRatio is the fraction of new traces recorded; values outside
	// (0, 1] sample everything.
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Higress: HigressConfig{
			BaseURL:        "http://localhost:8001",
			TimeoutSeconds: 30,
		},
		Confirm: ConfirmConfig{
			DeadlineSeconds: 180,
			CLIPrompt:       false,
		},
		Store: StoreConfig{
			RetentionMinutes: 60,
			MaxEntries:       1000,
			SweepSchedule:    "@every 1m",
		},
		Gateway: GatewayConfig{
			Enabled: true,
			Port:    7777,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9091,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
		Tracing: TracingConfig{
			SampleRatio: 1,
		},
	}
}

// HigressTimeout returns the downstream request timeout as a duration
func (c *Config) HigressTimeout() time.Duration {
	if c.Higress.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Higress.TimeoutSeconds) * time.Second
}

// ConfirmDeadline returns the confirmation deadline as a duration
func (c *Config) ConfirmDeadline() time.Duration {
	if c.Confirm.DeadlineSeconds <= 0 {
		return 180 * time.Second
	}
	return time.Duration(c.Confirm.DeadlineSeconds) * time.Second
}

// Retention returns the store retention window as a duration
func (c *Config) Retention() time.Duration {
	if c.Store.RetentionMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.Store.RetentionMinutes) * time.Minute
}
