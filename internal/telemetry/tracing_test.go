package telemetry

import (
	"context"
	"testing"

	"github.com/dunamismax/stylizer/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupTracingDisabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "stylizer-test", config.TracingConfig{Exporter: "none"}, zerolog.Nop())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupTracingRejectsBadConfig(t *testing.T) {
	_, err := SetupTracing(context.Background(), "stylizer-test", config.TracingConfig{Exporter: "otlp"}, zerolog.Nop())
	assert.Error(t, err)

	_, err = SetupTracing(context.Background(), "stylizer-test", config.TracingConfig{Exporter: "jaeger"}, zerolog.Nop())
	assert.Error(t, err)
}
