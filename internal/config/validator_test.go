package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Higress.Username = "admin"
	cfg.Higress.Password = "admin"
	cfg.Gateway.SharedSecret = "secret"
	return cfg
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidate_NilConfig(t *testing.T) {
	assert.Error(t, Validate(nil))
}

func TestValidate_BadBaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.Higress.BaseURL = "not a url"
	assert.Error(t, Validate(cfg))

	cfg.Higress.BaseURL = ""
	assert.Error(t, Validate(cfg))
}

func TestValidate_MissingCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.Higress.Username = ""
	cfg.Higress.Password = ""
	assert.Error(t, Validate(cfg))

	// A session cookie alone is sufficient
	cfg.Higress.SessionCookie = "abc"
	assert.NoError(t, Validate(cfg))
}

func TestValidate_SweepSchedule(t *testing.T) {
	cfg := validConfig()
	cfg.Store.SweepSchedule = "@every 30s"
	assert.NoError(t, Validate(cfg))

	cfg.Store.SweepSchedule = "not-a-schedule"
	assert.Error(t, Validate(cfg))
}

func TestValidate_GatewayRequirements(t *testing.T) {
	cfg := validConfig()
	cfg.Gateway.SharedSecret = ""
	assert.Error(t, Validate(cfg))

	cfg.Gateway.Enabled = false
	assert.NoError(t, Validate(cfg))

	cfg = validConfig()
	cfg.Gateway.Port = 0
	assert.Error(t, Validate(cfg))
}

func TestValidate_MetricsPortConflict(t *testing.T) {
	cfg := validConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = cfg.Gateway.Port
	assert.Error(t, Validate(cfg))

	cfg.Metrics.Port = 9091
	assert.NoError(t, Validate(cfg))
}
