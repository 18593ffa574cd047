package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitOpenTelemetry_Idempotent(t *testing.T) {
	require.NoError(t, InitOpenTelemetry("higate-test", 0.5))
	require.NoError(t, InitOpenTelemetry("something-else", 42))
}

func TestRootSampler_RatioBounds(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample(), rootSampler(0))
	assert.Equal(t, sdktrace.AlwaysSample(), rootSampler(-1))
	assert.Equal(t, sdktrace.AlwaysSample(), rootSampler(1.5))
	assert.NotEqual(t, sdktrace.AlwaysSample(), rootSampler(0.25))
}

func TestStartSpan_DefaultsTracerName(t *testing.T) {
	require.NoError(t, InitOpenTelemetry("higate-test", 1))

	ctx, span := StartSpan(context.Background(), "", "dispatch")
	defer span.End()

	assert.NotEmpty(t, GetTraceID(ctx))
}
