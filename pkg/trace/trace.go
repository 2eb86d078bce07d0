// Package trace wraps OpenTelemetry tracing so the rest of the broker only
// needs a tracer.Start call, never the SDK directly. When no collector
// address is configured, spans are still created against a local
// TracerProvider (no exporter runs), which keeps every call site identical
// whether or not tracing is actually shipped anywhere.
package trace

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"broker/pkg/logger"
	"broker/pkg/model"
)

// Tracer wraps an OpenTelemetry tracer provider.
type Tracer struct {
	tp oteltrace.TracerProvider
	oteltrace.Tracer
	log *logger.Log
}

// New builds a Tracer for the given service name. If cfg.Tracing.Addr is
// empty, spans are created but never exported.
func New(ctx context.Context, cfg *model.Config, log *logger.Log, serviceName string) (*Tracer, error) {
	var provider *sdktrace.TracerProvider

	res := sdktrace.WithResource(resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	))

	if cfg.Tracing.Addr == "" {
		provider = sdktrace.NewTracerProvider(res)
	} else {
		exp, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.Tracing.Addr),
			otlptracehttp.WithInsecure(),
			otlptracehttp.WithTimeout(time.Duration(cfg.Tracing.Timeout)*time.Second),
		)
		if err != nil {
			return nil, err
		}
		provider = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), res)
	}

	otel.SetTracerProvider(provider)

	return &Tracer{
		tp:     provider,
		Tracer: provider.Tracer(serviceName),
		log:    log,
	}, nil
}

// Shutdown flushes and stops the tracer provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if provider, ok := t.tp.(*sdktrace.TracerProvider); ok {
		t.log.Info("shutting down tracer")
		return provider.Shutdown(ctx)
	}
	return nil
}
