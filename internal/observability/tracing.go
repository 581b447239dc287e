package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// NewTracerProvider constructs a process-wide TracerProvider. It has no
// exporter wired by default (traces are sampled and dropped) so the engine
// can run standalone; callers may register a batch span processor with a
// real exporter when embedding semem into a service.
func NewTracerProvider(serviceName string) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Tracer is the package-wide tracer used to create spans around provider
// calls and multi-stage pipelines (ingest, ZPT selection).
func Tracer() trace.Tracer {
	return otel.Tracer("semem")
}
