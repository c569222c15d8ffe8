package telemetry

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"chorddht/internal/config"
	"chorddht/internal/ring"
)

// IDAttributes renders a ring id as an otel attribute set under the given
// key, so spans can be filtered by node or key identifier.
func IDAttributes(key string, id ring.ID) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(key, id.ToHexString(false)),
	}
}

// InitTracer wires the process-wide otel TracerProvider. Returning a no-op
// shutdown func here (tracing disabled) is intentional: every lookup call path still works,
// tracer.Start on a no-op provider is a cheap no-op span.
func InitTracer(cfg config.TelemetryConfig, serviceName string, nodeID ring.ID) func(context.Context) error {
	if !cfg.Tracing.Enabled {
		log.Println("tracing disabled")
		return func(context.Context) error { return nil }
	}

	attrs := append(
		[]attribute.KeyValue{semconv.ServiceNameKey.String(serviceName)},
		IDAttributes("dht.node.id", nodeID)...,
	)

	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		log.Fatalf("failed to create telemetry resource: %v", err)
	}

	var tp *sdktrace.TracerProvider

	switch cfg.Tracing.Exporter {
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			log.Fatalf("failed to initialize stdout exporter: %v", err)
		}
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
		)
	case "otlp":
		exp, err := otlptracegrpc.New(
			context.Background(),
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(cfg.Tracing.Endpoint),
		)
		if err != nil {
			log.Fatalf("failed to initialize OTLP exporter: %v", err)
		}
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
		)
	default:
		panic(fmt.Sprintf("unsupported exporter: %s", cfg.Tracing.Exporter))
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return tp.Shutdown
}
