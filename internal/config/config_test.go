package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "http://localhost:8001", cfg.Higress.BaseURL)
	assert.Equal(t, 180, cfg.Confirm.DeadlineSeconds)
	assert.Equal(t, 60, cfg.Store.RetentionMinutes)
	assert.Equal(t, "@every 1m", cfg.Store.SweepSchedule)
	assert.True(t, cfg.Gateway.Enabled)
	assert.True(t, cfg.Logging.Redaction)
	assert.Equal(t, float64(1), cfg.Tracing.SampleRatio)
}

func TestDurationHelpers(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 30*time.Second, cfg.HigressTimeout())
	assert.Equal(t, 180*time.Second, cfg.ConfirmDeadline())
	assert.Equal(t, time.Hour, cfg.Retention())

	cfg.Higress.TimeoutSeconds = 5
	cfg.Confirm.DeadlineSeconds = 30
	cfg.Store.RetentionMinutes = 10

	assert.Equal(t, 5*time.Second, cfg.HigressTimeout())
	assert.Equal(t, 30*time.Second, cfg.ConfirmDeadline())
	assert.Equal(t, 10*time.Minute, cfg.Retention())
}

func TestDurationHelpers_ZeroFallsBackToDefaults(t *testing.T) {
	cfg := &Config{}

	assert.Equal(t, 30*time.Second, cfg.HigressTimeout())
	assert.Equal(t, 180*time.Second, cfg.ConfirmDeadline())
	assert.Equal(t, time.Hour, cfg.Retention())
}
