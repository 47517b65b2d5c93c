package otel

import (
	"context"
	"errors"
	"github.com/ravan/echo-counter/internal/config"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// InitializeOpenTelemetry installs global tracer and meter providers for the
// enabled signals. The returned shutdown flushes and stops all of them.
func InitializeOpenTelemetry(ctx context.Context, serviceName string, cfg config.OtelConfig) (shutdown func(context.Context) error, outErr error) {
	var shutdownFuncs []func(context.Context) error
	// Each registered cleanup will be invoked once.
	shutdown = func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	if !cfg.Active() {
		return shutdown, nil
	} else if err := cfg.Validate(); err != nil {
		return shutdown, err
	}

	handleErr := func(inErr error) {
		outErr = errors.Join(inErr, shutdown(ctx))
	}

	res := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName))
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.Trace.Enabled {
		exp, err := traceExporter(ctx, cfg.Trace)
		if err != nil {
			handleErr(err)
			return
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(5*time.Second)),
		)
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
		otel.SetTracerProvider(tp)
	}

	if cfg.Metrics.Enabled {
		exp, err := metricExporter(ctx, cfg.Metrics)
		if err != nil {
			handleErr(err)
			return
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(1*time.Minute))),
		)
		shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
		otel.SetMeterProvider(mp)
	}

	return shutdown, outErr
}

// traceExporter prefers gRPC over HTTP when both are configured.
func traceExporter(ctx context.Context, cfg config.TraceConfig) (sdktrace.SpanExporter, error) {
	switch {
	case cfg.GrpcEndpointURL != "" || cfg.GrpcEndpoint != "":
		opts := []otlptracegrpc.Option{}
		if cfg.GrpcEndpointURL != "" {
			opts = append(opts, otlptracegrpc.WithEndpointURL(cfg.GrpcEndpointURL))
		} else {
			opts = append(opts, otlptracegrpc.WithEndpoint(cfg.GrpcEndpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		opts := []otlptracehttp.Option{}
		if cfg.HttpEndpointURL != "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(cfg.HttpEndpointURL))
		} else {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.HttpEndpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}
}

func metricExporter(ctx context.Context, cfg config.MetricsConfig) (sdkmetric.Exporter, error) {
	switch {
	case cfg.GrpcEndpointURL != "" || cfg.GrpcEndpoint != "":
		opts := []otlpmetricgrpc.Option{}
		if cfg.GrpcEndpointURL != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpointURL(cfg.GrpcEndpointURL))
		} else {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.GrpcEndpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)
	default:
		opts := []otlpmetrichttp.Option{}
		if cfg.HttpEndpointURL != "" {
			opts = append(opts, otlpmetrichttp.WithEndpointURL(cfg.HttpEndpointURL))
		} else {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.HttpEndpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	}
}
