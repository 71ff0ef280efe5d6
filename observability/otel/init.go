package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config captures the knobs for wiring the process-wide tracer provider. The
// spans come from the otelhttp wrapper around the JSON-RPC handler; the
// vault engine itself creates none. An operator points SpanProcessor at whatever exporter their
// environment uses (stdout, a batching OTLP exporter, a vendor SDK) by
// supplying it here rather than the package hardcoding a transport.
type Config struct {
	ServiceName    string
	Environment    string
	SpanProcessors []sdktrace.SpanProcessor
}

// Init configures the global OpenTelemetry tracer provider and propagator.
// Callers should invoke the returned shutdown function during teardown.
func Init(_ context.Context, cfg Config) (func(context.Context) error, error) {
	if cfg.ServiceName == "" {
		return nil, fmt.Errorf("service name required for telemetry")
	}

	attrs := []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attrs...)),
	}
	for _, sp := range cfg.SpanProcessors {
		opts = append(opts, sdktrace.WithSpanProcessor(sp))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}
