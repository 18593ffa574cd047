package config

import (
	"fmt"
	"net/url"

	"github.com/robfig/cron/v3"
)

// Validate checks the configuration for errors
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if cfg.Higress.BaseURL == "" {
		return fmt.Errorf("higress.base_url is required")
	}
	u, err := url.Parse(cfg.Higress.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("higress.base_url is not a valid URL: %s", cfg.Higress.BaseURL)
	}

	// Either a session cookie or full credentials must be supplied
	if cfg.Higress.SessionCookie == "" {
		if cfg.Higress.Username == "" || cfg.Higress.Password == "" {
			return fmt.Errorf("higress credentials are required: set higress.username and higress.password or higress.session_cookie")
		}
	}

	if cfg.Confirm.DeadlineSeconds < 0 {
		return fmt.Errorf("confirm.deadline_seconds cannot be negative")
	}

	if cfg.Store.RetentionMinutes < 0 {
		return fmt.Errorf("store.retention_minutes cannot be negative")
	}
	if cfg.Store.MaxEntries < 0 {
		return fmt.Errorf("store.max_entries cannot be negative")
	}
	if cfg.Store.SweepSchedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(cfg.Store.SweepSchedule); err != nil {
			return fmt.Errorf("store.sweep_schedule is invalid: %w", err)
		}
	}

	if cfg.Gateway.Enabled {
		if cfg.Gateway.Port <= 0 || cfg.Gateway.Port > 65535 {
			return fmt.Errorf("gateway.port must be between 1 and 65535")
		}
		if cfg.Gateway.SharedSecret == "" {
			return fmt.Errorf("gateway.shared_secret is required when the gateway is enabled")
		}
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be between 1 and 65535")
		}
		if cfg.Gateway.Enabled && cfg.Metrics.Port == cfg.Gateway.Port {
			return fmt.Errorf("metrics.port conflicts with gateway.port")
		}
	}

	return nil
}
