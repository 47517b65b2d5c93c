package otel

import (
	"context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"log/slog"
)

// Metrics holds the service instruments. Without a configured meter provider
// the global no-op provider makes every call free.
type Metrics struct {
	requests    metric.Int64Counter
	connections metric.Int64UpDownCounter
	dropped     metric.Int64Counter
}

func NewMetrics(serviceName string) *Metrics {
	meter := otel.Meter(serviceName)
	m := &Metrics{}
	var err error
	if m.requests, err = meter.Int64Counter("echo.requests",
		metric.WithDescription("Messages answered across all connections")); err != nil {
		slog.Error("failed to create instrument", "name", "echo.requests", slog.Any("error", err))
	}
	if m.connections, err = meter.Int64UpDownCounter("echo.connections",
		metric.WithDescription("Open client connections")); err != nil {
		slog.Error("failed to create instrument", "name", "echo.connections", slog.Any("error", err))
	}
	if m.dropped, err = meter.Int64Counter("echo.log.dropped",
		metric.WithDescription("Client messages that never reached the log sink")); err != nil {
		slog.Error("failed to create instrument", "name", "echo.log.dropped", slog.Any("error", err))
	}
	return m
}

func (m *Metrics) Request(ctx context.Context) {
	if m.requests != nil {
		m.requests.Add(ctx, 1)
	}
}

func (m *Metrics) ConnectionOpened(ctx context.Context) {
	if m.connections != nil {
		m.connections.Add(ctx, 1)
	}
}

func (m *Metrics) ConnectionClosed(ctx context.Context) {
	if m.connections != nil {
		m.connections.Add(ctx, -1)
	}
}

func (m *Metrics) LogDropped(reason error) {
	if m.dropped != nil {
		m.dropped.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("reason", reason.Error())))
	}
}
