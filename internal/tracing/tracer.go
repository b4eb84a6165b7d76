// Package tracing sets up OpenTelemetry spans around workflow and node
// execution so a slow or failing run can be traced end to end in an OTLP
// backend. Tracing is off by default (ObservabilityConfig.TracingEnabled);
// disabled mode returns a no-op provider so the interpreter never has to
// branch on whether a collector is reachable.
package tracing

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/loomwork/loom/internal/config"
)

// NewTracerProvider builds a tracer provider from cfg, or a no-op provider
// when tracing is disabled.
func NewTracerProvider(ctx context.Context, cfg *config.ObservabilityConfig) (trace.TracerProvider, func(), error) {
	if !cfg.TracingEnabled {
		return trace.NewNoopTracerProvider(), func() {}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.TracingServiceName),
			semconv.ServiceVersionKey.String("1.0.0"),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("tracing: building resource: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.TracingEndpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("tracing: building OTLP exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.TracingSampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.TracingSampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.TracingSampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	cleanup := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			slog.Error("tracing: shutting down tracer provider", "error", err)
		}
	}
	return tp, cleanup, nil
}

// InitGlobalTracer installs cfg's tracer provider and a W3C trace-context
// propagator as the process-wide defaults.
func InitGlobalTracer(ctx context.Context, cfg *config.ObservabilityConfig) (func(), error) {
	tp, cleanup, err := NewTracerProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return cleanup, nil
}

// StartSpan starts a span named spanName under the global tracer.
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer("loom").Start(ctx, spanName, opts...)
}

// SetSpanAttributes sets attrs on span, picking the concrete attribute.KeyValue
// constructor by the Go type of each value.
func SetSpanAttributes(span trace.Span, attrs map[string]interface{}) {
	for key, value := range attrs {
		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(key, v))
		case int:
			span.SetAttributes(attribute.Int(key, v))
		case int64:
			span.SetAttributes(attribute.Int64(key, v))
		case float64:
			span.SetAttributes(attribute.Float64(key, v))
		case bool:
			span.SetAttributes(attribute.Bool(key, v))
		default:
			span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
		}
	}
}
