package otel

import (
	"context"
	"github.com/ravan/echo-counter/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var Tracer trace.Tracer = otel.Tracer("")

func NewTracer(cfg config.OtelConfig) {
	if !cfg.Trace.Enabled {
		Tracer = otel.Tracer("")
		return
	}

	Tracer = otel.Tracer(cfg.Trace.TracerName)
}

// StartConnection opens the span that covers one client connection.
func StartConnection(ctx context.Context, serviceName, remote string) (context.Context, trace.Span) {
	return Tracer.Start(ctx, serviceName+".connection",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("net.peer.address", remote)))
}

// EndConnection records the connection outcome and ends the span.
func EndConnection(span trace.Span, requests int, err error) {
	span.SetAttributes(attribute.Int("echo.requests", requests))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
