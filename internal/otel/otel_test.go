package otel

import (
	"context"
	"errors"
	"github.com/ravan/echo-counter/internal/config"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestInitializeOpenTelemetryDisabled(t *testing.T) {
	shutdown, err := InitializeOpenTelemetry(context.Background(), "echo-test", config.OtelConfig{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitializeOpenTelemetryRequiresEndpoint(t *testing.T) {
	_, err := InitializeOpenTelemetry(context.Background(), "echo-test", config.OtelConfig{
		Metrics: config.MetricsConfig{Enabled: true},
	})
	require.Error(t, err)
}

func TestMetricsWithNoopProvider(t *testing.T) {
	m := NewMetrics("echo-test")
	ctx := context.Background()
	m.Request(ctx)
	m.ConnectionOpened(ctx)
	m.ConnectionClosed(ctx)
	m.LogDropped(errors.New("log queue full"))
}

func TestConnectionSpan(t *testing.T) {
	NewTracer(config.OtelConfig{})
	ctx, span := StartConnection(context.Background(), "echo-test", "127.0.0.1:5555")
	require.NotNil(t, ctx)
	EndConnection(span, 3, errors.New("reset by peer"))
}
