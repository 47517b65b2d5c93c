package config

import "errors"

type OtelConfig struct {
	Trace   TraceConfig   `mapstructure:"trace"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type TraceConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	TracerName      string `mapstructure:"tracer-name"`
	HttpEndpoint    string `mapstructure:"http-endpoint"`
	HttpEndpointURL string `mapstructure:"http-endpoint-url"`
	GrpcEndpoint    string `mapstructure:"grpc-endpoint"`
	GrpcEndpointURL string `mapstructure:"grpc-endpoint-url"`
	Insecure        bool   `mapstructure:"insecure"`
}

type MetricsConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	HttpEndpoint    string `mapstructure:"http-endpoint"`
	HttpEndpointURL string `mapstructure:"http-endpoint-url"`
	GrpcEndpoint    string `mapstructure:"grpc-endpoint"`
	GrpcEndpointURL string `mapstructure:"grpc-endpoint-url"`
	Insecure        bool   `mapstructure:"insecure"`
}

func (c OtelConfig) Active() bool {
	return c.Trace.Enabled || c.Metrics.Enabled
}

// Validate checks that every enabled signal has an exporter endpoint.
func (c OtelConfig) Validate() error {
	var err error
	if c.Trace.Enabled && c.Trace.HttpEndpoint == "" && c.Trace.HttpEndpointURL == "" &&
		c.Trace.GrpcEndpoint == "" && c.Trace.GrpcEndpointURL == "" {
		err = errors.Join(err, errors.New("otel.trace is enabled but no endpoint is configured"))
	}
	if c.Metrics.Enabled && c.Metrics.HttpEndpoint == "" && c.Metrics.HttpEndpointURL == "" &&
		c.Metrics.GrpcEndpoint == "" && c.Metrics.GrpcEndpointURL == "" {
		err = errors.Join(err, errors.New("otel.metrics is enabled but no endpoint is configured"))
	}
	return err
}
