package daemon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arpith/higate/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Higress.SessionCookie = "test-session"
	cfg.Gateway.Enabled = false
	cfg.Metrics.Enabled = false
	cfg.DataDir = t.TempDir()
	cfg.Logging.Console = false
	cfg.Logging.Pretty = false
	return cfg
}

func TestNew_BuildsComponents(t *testing.T) {
	d, err := New(testConfig(t), nil)
	require.NoError(t, err)

	assert.NotNil(t, d.Registry())
	assert.NotNil(t, d.Gate())
	assert.NotNil(t, d.Dispatcher())
	assert.NotNil(t, d.Store())

	// The catalog is sealed and fully populated.
	assert.True(t, d.Registry().Sealed())
	assert.Equal(t, 10, d.Registry().Count())

	// No gateway when disabled.
	assert.Nil(t, d.gatewayServer)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Higress.BaseURL = "::not-a-url"

	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestNew_GatewayEnabledNeedsSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.Gateway.Enabled = true
	cfg.Gateway.SharedSecret = ""

	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestNew_WithGateway(t *testing.T) {
	cfg := testConfig(t)
	cfg.Gateway.Enabled = true
	cfg.Gateway.SharedSecret = "secret"

	d, err := New(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, d.gatewayServer)
}

func TestOnConfigReload_AppliesDeadline(t *testing.T) {
	cfg := testConfig(t)
	d, err := New(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, 180*time.Second, d.gate.Deadline())

	updated := testConfig(t)
	updated.Confirm.DeadlineSeconds = 60
	d.onConfigReload(updated)

	assert.Equal(t, 60*time.Second, d.gate.Deadline())
	assert.Equal(t, 60, d.config.Confirm.DeadlineSeconds)
}

func TestOnConfigReload_RotatesGatewaySecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.Gateway.Enabled = true
	cfg.Gateway.SharedSecret = "old-secret"

	d, err := New(cfg, nil)
	require.NoError(t, err)

	updated := testConfig(t)
	updated.Gateway.Enabled = true
	updated.Gateway.SharedSecret = "new-secret"
	d.onConfigReload(updated)

	assert.Equal(t, "new-secret", d.config.Gateway.SharedSecret)
}

func TestOnConfigReload_AppliesLogLevel(t *testing.T) {
	cfg := testConfig(t)
	d, err := New(cfg, nil)
	require.NoError(t, err)

	updated := testConfig(t)
	updated.Logging.Level = "debug"
	d.onConfigReload(updated)

	assert.Equal(t, "debug", d.config.Logging.Level)
}
